package main

import (
	"context"

	"clinicslots/internal/slots/events"
	"clinicslots/internal/slots/handler"
	"clinicslots/internal/slots/repository"
	"clinicslots/internal/slots/service"
	"clinicslots/internal/slots/validator"
	"clinicslots/pkg/app"
	"clinicslots/pkg/auth"
	"clinicslots/pkg/clock"
	"clinicslots/pkg/config"
	"clinicslots/pkg/kafka"
	kafka_config "clinicslots/pkg/kafka/config"
	kafkamw "clinicslots/pkg/kafka/middleware"
	"clinicslots/pkg/model"
)

const ServiceName = "slotstore"

func main() {
	cfg := config.Load(ServiceName)
	if cfg.JWTSecret == "" {
		cfg.Log.Fatal("JWT_SECRET is required to verify patient tokens")
	}
	cfg.SetRedis()

	cfg.Log.Info("Starting Slot Store service", "store_driver", cfg.StoreDriver)
	serverApp := app.NewApplication(cfg)

	repo := initRepository(cfg)
	publisher, metrics := initPublisher(cfg, serverApp)
	clk := clock.Real{}

	bookingValidator := validator.NewBookingValidator(cfg.Log, clk.Now, cfg.Location)
	leaseService := service.NewLeaseService(repo, bookingValidator, publisher, clk, cfg)
	availabilityService := service.NewAvailabilityService(repo, bookingValidator, clk, cfg)

	sweeper := service.NewSweeper(repo, publisher, clk, cfg.SweepInterval, cfg.Log)
	sweeper.Start()
	serverApp.OnShutdown(func(context.Context) { sweeper.Stop() })

	serverApp.SetApp(
		handler.NewSlotHandler(leaseService, availabilityService, cfg.Log),
		handler.NewHealthHandler(repo, cfg.Client.Redis, metrics, cfg.Log),
		auth.NewManager(cfg.JWTSecret, cfg.JWTTTL),
	)
	serverApp.Run()
}

func initRepository(cfg *config.Config) repository.SlotRepository {
	if cfg.StoreDriver == config.StoreDriverMemory {
		repo := repository.NewMemorySlotRepository()
		if cfg.SeedDoctorID != "" {
			seedMemory(cfg, repo)
		}
		cfg.Log.Warn("Using the in-memory slot store; data is lost on restart")
		return repo
	}

	cfg.SetMongo()
	cfg.Log.Info("Slot repository initialized", "database", cfg.MongoDatabaseName)
	return repository.NewMongoSlotRepository(cfg)
}

func seedMemory(cfg *config.Config, repo repository.SlotRepository) {
	now := cfg.Now()
	today, _ := model.ParseDate(model.Today(now, cfg.Location), cfg.Location)
	sched := model.DaySchedule{
		DoctorID:    cfg.SeedDoctorID,
		StartOfDay:  "09:00",
		EndOfDay:    "17:00",
		SlotMinutes: 30,
	}
	total := 0
	for i := 0; i < cfg.SeedDays; i++ {
		date := today.AddDate(0, 0, i).Format(model.DateLayout)
		slots, err := model.GenerateDaySlots(sched, date, cfg.Location, now.UTC())
		if err != nil {
			cfg.Log.Fatal("Failed to generate seed slots", "error", err)
		}
		if err := repo.Insert(context.Background(), slots...); err != nil {
			cfg.Log.Fatal("Failed to seed slots", "date", date, "error", err)
		}
		total += len(slots)
	}
	cfg.Log.Info("Seeded memory store", "doctor_id", cfg.SeedDoctorID, "days", cfg.SeedDays, "slots", total)
}

// initPublisher returns the Kafka publisher with logging and metrics
// middleware, or a log-only publisher when Kafka is disabled.
func initPublisher(cfg *config.Config, serverApp *app.Application) (events.Publisher, *kafkamw.Metrics) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, slot events are only logged")
		return events.NewLogPublisher(cfg.Log.Component("slot_events")), nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.SlotEventsTopic, cfg.SlotEventsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	metrics := kafkamw.NewMetrics()
	producer.Use(kafkamw.LoggingProducerMiddleware(cfg.Log))
	producer.Use(metrics.ProducerMiddleware())

	serverApp.OnShutdown(func(context.Context) {
		stats := producer.Stats()
		cfg.Log.Info("Closing Kafka producer", "messages", stats.Messages, "errors", stats.Errors)
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})

	cfg.Log.Info("Slot events publishing to Kafka", "topic", cfg.SlotEventsTopic)
	return events.NewKafkaPublisher(producer), metrics
}
