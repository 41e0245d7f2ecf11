package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	slotserrors "clinicslots/internal/slots/errors"
	"clinicslots/pkg/config"
	mongotx "clinicslots/pkg/db/mongo"
	"clinicslots/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type mongoSlotRepository struct {
	cfg          *config.Config
	client       *mongo.Client
	slots        *mongo.Collection
	appointments *mongo.Collection
	txManager    mongotx.TransactionManager
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:          cfg,
		client:       cfg.Client.Mongo,
		slots:        db.Collection(SlotsCollection),
		appointments: db.Collection(AppointmentsCollection),
		txManager:    mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout bounds ctx unless it is a transaction's SessionContext, which
// cannot be wrapped without leaving the session.
func (r *mongoSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

// openFilter matches slots that can be acquired at now.
func openFilter(now time.Time) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"status": model.SlotAvailable},
		bson.M{"status": model.SlotHeld, "hold_expires_at": bson.M{"$lte": now}},
	}}
}

// liveAppointment matches appointments that still occupy their slot.
var liveAppointment = bson.M{"$in": bson.A{model.AppointmentPending, model.AppointmentConfirmed}}

// liveHoldFilter matches the slot only while holder's hold is unexpired.
func liveHoldFilter(slotID, holder string, now time.Time) bson.M {
	return bson.M{
		"_id":             slotID,
		"status":          model.SlotHeld,
		"held_by":         holder,
		"hold_expires_at": bson.M{"$gt": now},
	}
}

func (r *mongoSlotRepository) Insert(ctx context.Context, slots ...*model.TimeSlot) error {
	if len(slots) == 0 {
		return nil
	}
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	docs := make([]any, len(slots))
	for i, s := range slots {
		docs[i] = s
	}
	if _, err := r.slots.InsertMany(ctx, docs); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %v", slotserrors.ErrDuplicateSlot, err)
		}
		return fmt.Errorf("failed to insert slots: %w", err)
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.TimeSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var slot model.TimeSlot
	if err := r.slots.FindOne(ctx, bson.M{"_id": id}).Decode(&slot); err != nil {
		if mongotx.IsNoDocuments(err) {
			return nil, slotserrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) FindByDoctorAndDate(ctx context.Context, doctorID, date string) ([]*model.TimeSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	cursor, err := r.slots.Find(ctx, bson.M{"doctor_id": doctorID, "date": date}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	slots := []*model.TimeSlot{}
	if err := cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

func (r *mongoSlotRepository) CountOpenByDates(ctx context.Context, doctorID string, dates []string, now, notBefore time.Time) (map[string]int, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	match := openFilter(now)
	match["doctor_id"] = doctorID
	match["date"] = bson.M{"$in": dates}
	match["start_time"] = bson.M{"$gt": notBefore}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$date", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.slots.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate availability: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Date  string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode availability: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Date] = row.Count
	}
	return counts, nil
}

func (r *mongoSlotRepository) Hold(ctx context.Context, p HoldParams) (*model.TimeSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := openFilter(p.Now)
	filter["_id"] = p.SlotID
	if p.DoctorID != "" {
		filter["doctor_id"] = p.DoctorID
	}
	if p.Date != "" {
		filter["date"] = p.Date
	}

	update := bson.M{
		"$set": bson.M{
			"status":          model.SlotHeld,
			"held_by":         p.Holder,
			"hold_expires_at": p.ExpiresAt,
			"updated_at":      p.Now,
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var slot model.TimeSlot
	err := r.slots.FindOneAndUpdate(ctx, filter, update, opts).Decode(&slot)
	if err == nil {
		return &slot, nil
	}
	if !mongotx.IsNoDocuments(err) {
		return nil, fmt.Errorf("failed to hold slot: %w", err)
	}
	return nil, r.classifyHoldMiss(ctx, p)
}

// classifyHoldMiss explains why a conditional hold matched nothing.
func (r *mongoSlotRepository) classifyHoldMiss(ctx context.Context, p HoldParams) error {
	existing, err := r.FindByID(ctx, p.SlotID)
	if err != nil {
		return err
	}
	if (p.DoctorID != "" && existing.DoctorID != p.DoctorID) || (p.Date != "" && existing.Date != p.Date) {
		return slotserrors.ErrSlotMismatch
	}
	return slotserrors.ErrSlotUnavailable
}

func (r *mongoSlotRepository) Release(ctx context.Context, slotID, holder string, now time.Time) (*model.TimeSlot, bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": slotID, "status": model.SlotHeld, "held_by": holder}
	update := bson.M{
		"$set":   bson.M{"status": model.SlotAvailable, "updated_at": now},
		"$unset": bson.M{"held_by": "", "hold_expires_at": ""},
		"$inc":   bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var slot model.TimeSlot
	err := r.slots.FindOneAndUpdate(ctx, filter, update, opts).Decode(&slot)
	if err == nil {
		return &slot, true, nil
	}
	if !mongotx.IsNoDocuments(err) {
		return nil, false, fmt.Errorf("failed to release slot: %w", err)
	}

	existing, err := r.FindByID(ctx, slotID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *mongoSlotRepository) SweepExpired(ctx context.Context, now time.Time) ([]*model.TimeSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	expired := bson.M{"status": model.SlotHeld, "hold_expires_at": bson.M{"$lte": now}}
	cursor, err := r.slots.Find(ctx, expired, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to find expired holds: %w", err)
	}
	var ids []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode expired holds: %w", err)
	}

	update := bson.M{
		"$set":   bson.M{"status": model.SlotAvailable, "updated_at": now},
		"$unset": bson.M{"held_by": "", "hold_expires_at": ""},
		"$inc":   bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	swept := make([]*model.TimeSlot, 0, len(ids))
	for _, row := range ids {
		// Re-check the predicate per slot: a commit or takeover may have won
		// since the scan.
		filter := bson.M{"_id": row.ID, "status": model.SlotHeld, "hold_expires_at": bson.M{"$lte": now}}
		var before model.TimeSlot
		err := r.slots.FindOneAndUpdate(ctx, filter, update, opts).Decode(&before)
		if err != nil {
			if mongotx.IsNoDocuments(err) {
				continue
			}
			return swept, fmt.Errorf("failed to sweep slot %s: %w", row.ID, err)
		}
		swept = append(swept, &before)
	}
	return swept, nil
}

// bookSlot flips the caller's live hold to booked.
func (r *mongoSlotRepository) bookSlot(ctx context.Context, slotID, holder string, now time.Time) (*model.TimeSlot, error) {
	update := bson.M{
		"$set":   bson.M{"status": model.SlotBooked, "updated_at": now},
		"$unset": bson.M{"held_by": "", "hold_expires_at": ""},
		"$inc":   bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var slot model.TimeSlot
	err := r.slots.FindOneAndUpdate(ctx, liveHoldFilter(slotID, holder, now), update, opts).Decode(&slot)
	if err == nil {
		return &slot, nil
	}
	if !mongotx.IsNoDocuments(err) {
		return nil, fmt.Errorf("failed to book slot: %w", err)
	}
	if _, findErr := r.FindByID(ctx, slotID); findErr != nil {
		return nil, findErr
	}
	return nil, slotserrors.ErrHoldNotActive
}

// committed returns holder's live appointment on a booked slotID, left by an
// earlier commit whose response the caller never saw.
func (r *mongoSlotRepository) committed(ctx context.Context, slotID, holder string) (*model.Appointment, *model.TimeSlot, error) {
	slot, err := r.FindByID(ctx, slotID)
	if err != nil {
		return nil, nil, err
	}
	if slot.Status != model.SlotBooked {
		return nil, nil, nil
	}

	var appt model.Appointment
	err = r.appointments.FindOne(ctx, bson.M{
		"slot_id": slotID,
		"patient": holder,
		"status":  liveAppointment,
	}).Decode(&appt)
	switch {
	case err == nil:
		return &appt, slot, nil
	case mongotx.IsNoDocuments(err):
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("failed to find committed appointment: %w", err)
	}
}

// replayedReschedule returns the outcome of an earlier reschedule of old
// onto slotID, or nil when old was not moved there.
func (r *mongoSlotRepository) replayedReschedule(ctx context.Context, old *model.Appointment, slotID string) (*RescheduleOutcome, error) {
	if old.Status != model.AppointmentSuperseded || old.SupersededBy == "" {
		return nil, nil
	}

	var created model.Appointment
	err := r.appointments.FindOne(ctx, bson.M{
		"_id":     old.SupersededBy,
		"slot_id": slotID,
		"status":  liveAppointment,
	}).Decode(&created)
	if err != nil {
		if mongotx.IsNoDocuments(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find rescheduled appointment: %w", err)
	}
	slot, err := r.FindByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	return &RescheduleOutcome{NewAppointment: &created, OldAppointment: old, NewSlot: slot}, nil
}

func (r *mongoSlotRepository) Book(ctx context.Context, p BookParams) (*model.Appointment, *model.TimeSlot, error) {
	var (
		appt *model.Appointment
		slot *model.TimeSlot
	)
	err := r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		booked, err := r.bookSlot(sessCtx, p.SlotID, p.Holder, p.Now)
		if errors.Is(err, slotserrors.ErrHoldNotActive) {
			existing, existingSlot, findErr := r.committed(sessCtx, p.SlotID, p.Holder)
			if findErr != nil {
				return findErr
			}
			if existing != nil {
				appt, slot = existing, existingSlot
				return nil
			}
		}
		if err != nil {
			return err
		}
		created := model.NewAppointment(p.AppointmentID, booked, p.Holder, p.Details, p.Now)
		if _, err := r.appointments.InsertOne(sessCtx, created); err != nil {
			return fmt.Errorf("failed to insert appointment: %w", err)
		}
		appt, slot = created, booked
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return appt, slot, nil
}

func (r *mongoSlotRepository) Reschedule(ctx context.Context, p RescheduleParams) (*RescheduleOutcome, error) {
	var outcome *RescheduleOutcome
	err := r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var old model.Appointment
		if err := r.appointments.FindOne(sessCtx, bson.M{"_id": p.OldAppointmentID}).Decode(&old); err != nil {
			if mongotx.IsNoDocuments(err) {
				return slotserrors.ErrAppointmentNotFound
			}
			return fmt.Errorf("failed to find appointment: %w", err)
		}
		if old.Patient != p.Holder {
			return slotserrors.ErrAppointmentNotFound
		}
		replay, err := r.replayedReschedule(sessCtx, &old, p.SlotID)
		if err != nil {
			return err
		}
		if replay != nil {
			outcome = replay
			return nil
		}
		if !old.Reschedulable() {
			return slotserrors.ErrAppointmentNotReschedulable
		}

		booked, err := r.bookSlot(sessCtx, p.SlotID, p.Holder, p.Now)
		if err != nil {
			return err
		}

		created := model.NewAppointment(p.AppointmentID, booked, p.Holder, p.Details, p.Now)
		created.RescheduledFrom = old.ID
		if _, err := r.appointments.InsertOne(sessCtx, created); err != nil {
			return fmt.Errorf("failed to insert appointment: %w", err)
		}

		res, err := r.appointments.UpdateOne(sessCtx,
			bson.M{"_id": old.ID, "status": liveAppointment},
			bson.M{"$set": bson.M{
				"status":        model.AppointmentSuperseded,
				"superseded_by": created.ID,
				"updated_at":    p.Now,
			}},
		)
		if err != nil {
			return fmt.Errorf("failed to supersede appointment: %w", err)
		}
		if res.MatchedCount == 0 {
			return slotserrors.ErrAppointmentNotReschedulable
		}
		old.Status = model.AppointmentSuperseded
		old.SupersededBy = created.ID
		old.UpdatedAt = p.Now

		var freed model.TimeSlot
		err = r.slots.FindOneAndUpdate(sessCtx,
			bson.M{"_id": old.SlotID, "status": model.SlotBooked},
			bson.M{
				"$set": bson.M{"status": model.SlotAvailable, "updated_at": p.Now},
				"$inc": bson.M{"version": 1},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&freed)
		var oldSlot *model.TimeSlot
		switch {
		case err == nil:
			oldSlot = &freed
		case mongotx.IsNoDocuments(err):
		default:
			return fmt.Errorf("failed to free previous slot: %w", err)
		}

		outcome = &RescheduleOutcome{
			NewAppointment: created,
			OldAppointment: &old,
			NewSlot:        booked,
			OldSlot:        oldSlot,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (r *mongoSlotRepository) FindAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var appt model.Appointment
	if err := r.appointments.FindOne(ctx, bson.M{"_id": id}).Decode(&appt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	return &appt, nil
}

func (r *mongoSlotRepository) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()
	return r.client.Ping(ctx, readpref.Primary())
}
