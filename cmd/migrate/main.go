package main

import (
	"context"
	"errors"
	"flag"
	"time"

	mongoMigration "clinicslots/internal/migrations/mongo"
	slotserrors "clinicslots/internal/slots/errors"
	"clinicslots/internal/slots/repository"
	"clinicslots/pkg/config"
	"clinicslots/pkg/model"
)

const JobName = "mongo-migration"

type seedOptions struct {
	doctorID string
	from     string
	days     int
	open     string
	close    string
	slotMin  int
	breakMin int
}

func main() {
	var seed seedOptions
	flag.StringVar(&seed.doctorID, "seed-doctor", "", "seed available slots for this doctor id")
	flag.StringVar(&seed.from, "seed-from", "", "first date to seed (YYYY-MM-DD, default today)")
	flag.IntVar(&seed.days, "seed-days", 14, "number of consecutive dates to seed")
	flag.StringVar(&seed.open, "seed-open", "09:00", "start of the working day")
	flag.StringVar(&seed.close, "seed-close", "17:00", "end of the working day")
	flag.IntVar(&seed.slotMin, "seed-slot-minutes", 30, "slot length in minutes")
	flag.IntVar(&seed.breakMin, "seed-break-minutes", 0, "break after each slot in minutes")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()
	cfg := config.Load(JobName)
	cfg.SetMongo()
	cfg.Log.Info("Starting Mongo migration job")
	defer cfg.GracefulShutdown()

	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}
	if seed.doctorID != "" {
		seedSlots(ctx, cfg, seed)
	}
	cfg.Log.Info("Migration completed successfully")
}

func seedSlots(ctx context.Context, cfg *config.Config, opts seedOptions) {
	repo := repository.NewMongoSlotRepository(cfg)
	now := cfg.Now()
	from := opts.from
	if from == "" {
		from = model.Today(now, cfg.Location)
	}
	day, err := model.ParseDate(from, cfg.Location)
	if err != nil {
		cfg.Log.Fatal("Invalid -seed-from", "error", err)
	}

	sched := model.DaySchedule{
		DoctorID:    opts.doctorID,
		StartOfDay:  opts.open,
		EndOfDay:    opts.close,
		SlotMinutes: opts.slotMin,
		BreakMin:    opts.breakMin,
	}
	total := 0
	for i := 0; i < opts.days; i++ {
		date := day.AddDate(0, 0, i).Format(model.DateLayout)
		slots, err := model.GenerateDaySlots(sched, date, cfg.Location, now.UTC())
		if err != nil {
			cfg.Log.Fatal("Invalid seed schedule", "error", err)
		}
		if err := repo.Insert(ctx, slots...); err != nil {
			if errors.Is(err, slotserrors.ErrDuplicateSlot) {
				cfg.Log.Warn("Date already seeded, skipping", "doctor_id", opts.doctorID, "date", date)
				continue
			}
			cfg.Log.Fatal("Failed to seed slots", "date", date, "error", err)
		}
		total += len(slots)
	}
	cfg.Log.Info("Seeded slots", "doctor_id", opts.doctorID, "from", from, "days", opts.days, "slots", total)
}
