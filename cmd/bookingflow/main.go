package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"clinicslots/internal/booking/availability"
	"clinicslots/internal/booking/countdown"
	"clinicslots/internal/booking/flow"
	"clinicslots/internal/booking/lease"
	"clinicslots/pkg/auth"
	"clinicslots/pkg/client"
	"clinicslots/pkg/clock"
	"clinicslots/pkg/config"
	apperrors "clinicslots/pkg/errors"
	"clinicslots/pkg/kafka"
	kafka_config "clinicslots/pkg/kafka/config"
	kafkamw "clinicslots/pkg/kafka/middleware"
	"clinicslots/pkg/logger"
	"clinicslots/pkg/model"
)

const (
	ServiceName   = "bookingflow"
	slotStoreWait = 30 * time.Second
)

type options struct {
	token      string
	holder     string
	sessionID  string
	doctorID   string
	date       string
	slotID     string
	reason     string
	reschedule string
	think      time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.token, "token", "", "bearer token of the signed-in patient")
	flag.StringVar(&opts.holder, "holder", "", "issue a token for this patient with JWT_SECRET instead of -token")
	flag.StringVar(&opts.sessionID, "session", "", "booking session id (default: the holder)")
	flag.StringVar(&opts.doctorID, "doctor", "", "doctor to book with")
	flag.StringVar(&opts.date, "date", "", "date to book (default: first date with open slots)")
	flag.StringVar(&opts.slotID, "slot", "", "slot to hold (default: first open slot)")
	flag.StringVar(&opts.reason, "reason", "", "reason for the visit")
	flag.StringVar(&opts.reschedule, "reschedule", "", "move this appointment instead of booking a new one")
	flag.DurationVar(&opts.think, "think", 0, "pause between holding the slot and confirming")
	flag.Parse()

	cfg := config.Load(ServiceName)
	cfg.SetRedis()
	log := cfg.Log

	identity := signIn(cfg, opts)
	creds, _ := identity.Credentials()
	if opts.sessionID == "" {
		opts.sessionID = creds.Holder
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	probe := client.NewHttpClient("slot-store", cfg.SlotStoreURL, cfg.ClientTimeout)
	if err := probe.WaitForHealthy(ctx, slotStoreWait); err != nil {
		log.Fatal("Slot store is not reachable", "url", cfg.SlotStoreURL, "error", err)
	}

	clk := clock.Real{}
	store := client.NewSlotStoreClient(cfg.SlotStoreURL, cfg.ClientTimeout, identity)
	leases := lease.NewManager(store, identity, clk, cfg.ReleaseTimeout, log)
	agg := availability.NewCachedAggregator(
		availability.NewAggregator(store, clk, cfg.Location, cfg.TodayBuffer, log),
		initCache(cfg, clk),
	)
	invalidator := availability.NewInvalidator(agg, log)

	ctrl := flow.NewController(opts.sessionID, flow.Deps{
		Lease:        leases,
		Availability: agg,
		Profile:      initProfile(cfg, identity),
		Appointments: store,
		Identity:     identity,
		Sessions:     initSessions(cfg, clk),
		Observer:     &consoleObserver{log: log.Component("booking_view")},
		Clock:        clk,
		Location:     cfg.Location,
		Log:          log,
	})
	unsubscribe := invalidator.Subscribe(ctrl.HandleSlotEvent)
	stopEvents := startEvents(ctx, cfg, opts.sessionID, invalidator)

	err := drive(ctx, ctrl, opts)
	v := ctrl.View()

	unsubscribe()
	stopEvents()
	ctrl.Close(context.Background())
	leases.Wait()
	cfg.GracefulShutdown()

	if err != nil {
		log.Fatal("Booking did not complete", "state", v.State, "error", err)
	}
	if v.Appointment == nil {
		log.Info("Booking session was already complete", "session_id", opts.sessionID)
		return
	}
	log.Info("Booking completed",
		"appointment_id", v.Appointment.ID,
		"slot_id", v.Appointment.SlotID,
		"start_time", v.Appointment.StartTime,
		"mode", v.Mode,
	)
}

func signIn(cfg *config.Config, opts options) *auth.SessionIdentity {
	token := opts.token
	if token == "" && opts.holder != "" {
		if cfg.JWTSecret == "" {
			cfg.Log.Fatal("-holder requires JWT_SECRET")
		}
		issued, err := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL).Issue(opts.holder)
		if err != nil {
			cfg.Log.Fatal("Failed to issue token", "error", err)
		}
		token = issued
	}
	if token == "" {
		cfg.Log.Fatal("Sign in with -token or -holder")
	}

	identity := auth.NewSessionIdentity()
	if err := identity.SignIn(token); err != nil {
		cfg.Log.Fatal("Invalid token", "error", err)
	}
	return identity
}

func initCache(cfg *config.Config, clk clock.Clock) availability.Cache {
	if cfg.Client.Redis != nil {
		return availability.NewRedisCache(cfg.Client.Redis, cfg.AvailabilityCacheTTL)
	}
	return availability.NewMemoryCache(cfg.AvailabilityCacheTTL, clk)
}

func initSessions(cfg *config.Config, clk clock.Clock) flow.SessionStore {
	if cfg.Client.Redis != nil {
		return flow.NewRedisSessionStore(cfg.Client.Redis, cfg.SessionTTL)
	}
	return flow.NewMemorySessionStore(cfg.SessionTTL, clk)
}

func initProfile(cfg *config.Config, identity auth.Identity) flow.ProfileChecker {
	if cfg.ProfileServiceURL == "" {
		cfg.Log.Info("No profile service configured, every profile counts as complete")
		return client.CompleteProfile{}
	}
	return client.NewProfileClient(cfg.ProfileServiceURL, cfg.ClientTimeout, identity)
}

// startEvents consumes slot events into the invalidator. Each session reads
// with its own consumer group so every session sees every event.
func startEvents(ctx context.Context, cfg *config.Config, sessionID string, invalidator *availability.Invalidator) func() {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, availability refreshes only on navigation")
		return func() {}
	}
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	group := cfg.SlotEventsGroup + "-" + sessionID
	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.Log, cfg.SlotEventsTopic, group, cfg.SlotEventsDLQTopic, invalidator.HandleMessage)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	metrics := kafkamw.NewMetrics()
	consumer.Use(kafkamw.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(metrics.ConsumerMiddleware())

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			cfg.Log.Error("Slot event consumer stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
		snap := metrics.Snapshot()
		cfg.Log.Info("Slot event consumer closed", "events", snap)
	}
}

// drive walks the flow from wherever the session left off to a committed
// booking.
func drive(ctx context.Context, ctrl *flow.Controller, opts options) error {
	if _, err := ctrl.Resume(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		v := ctrl.View()
		var err error
		switch v.State {
		case flow.StateSuccess:
			return nil
		case flow.StateSignInRequired:
			return errors.New("the session needs a new sign-in")
		case flow.StateSelectingDoctor:
			if opts.reschedule != "" {
				err = ctrl.StartReschedule(ctx, opts.reschedule)
			} else {
				err = ctrl.SelectDoctor(ctx, opts.doctorID)
			}
		case flow.StateSelectingDate:
			var date string
			date, err = pickDate(v, opts.date)
			if err == nil {
				err = ctrl.SelectDate(ctx, date)
			}
		case flow.StateSelectingSlot:
			err = ctrl.SelectSlot(ctx, pickSlot(v, opts.slotID))
			if err != nil && opts.slotID != "" {
				// The requested slot is gone; take any other.
				opts.slotID = ""
				err = nil
			}
		case flow.StateEnteringDetails:
			details := v.Draft.Details
			if opts.reason != "" {
				details.Reason = opts.reason
			}
			if err = ctrl.UpdateDetails(details); err == nil {
				sleep(ctx, opts.think)
				err = ctrl.Confirm(ctx)
			}
		case flow.StateFailed, flow.StateError:
			sleep(ctx, time.Second)
			err = ctrl.Retry(ctx)
		default:
			sleep(ctx, 100*time.Millisecond)
		}
		if err != nil && !recoverable(err) {
			return err
		}
	}
}

// recoverable errors leave the flow in a state the loop can continue from.
func recoverable(err error) bool {
	return apperrors.IsRetryable(err) ||
		errors.Is(err, flow.ErrFlowChanged) ||
		errors.Is(err, flow.ErrAcquireInFlight) ||
		apperrors.HasCode(err, apperrors.CodeSlotConflict) ||
		apperrors.HasCode(err, apperrors.CodeSlotNotFound) ||
		apperrors.HasCode(err, apperrors.CodeHoldExpired)
}

func pickDate(v flow.View, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	dates := make([]string, 0, len(v.Calendar))
	for date := range v.Calendar {
		if v.Calendar.Selectable(date) {
			dates = append(dates, date)
		}
	}
	if len(dates) == 0 {
		return "", fmt.Errorf("no open dates in %s", v.Month)
	}
	sort.Strings(dates)
	return dates[0], nil
}

func pickSlot(v flow.View, requested string) string {
	if requested != "" || len(v.Slots) == 0 {
		return requested
	}
	return v.Slots[0].ID
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

type consoleObserver struct {
	flow.NopObserver
	log *logger.Logger
}

func (o *consoleObserver) StateChanged(from, to flow.State) {
	o.log.Info("Step", "from", from, "to", to)
}

func (o *consoleObserver) CountdownTick(remaining int) {
	if remaining%15 == 0 || remaining <= 10 {
		o.log.Info("Hold time left", "remaining", countdown.Format(remaining))
	}
}

func (o *consoleObserver) HoldExpired() {
	o.log.Warn("The hold expired; pick a slot again")
}

func (o *consoleObserver) SlotsChanged(date string, slots []*model.TimeSlot) {
	o.log.Info("Open slots", "date", date, "count", len(slots))
}

func (o *consoleObserver) FieldErrors(fields map[string]any) {
	o.log.Warn("Please fix the booking details", "fields", fields)
}
