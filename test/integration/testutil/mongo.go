package testutil

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clinicslots/internal/slots/repository"
	"clinicslots/pkg/model"
)

const (
	DefaultMongoURI     = "mongodb://localhost:27017"
	DefaultDatabaseName = "clinicslots"
	ConnectionTimeout   = 10 * time.Second
)

// MongoHelper seeds and inspects the slot store database directly.
type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
	DBName   string
}

func NewMongoHelper(t *testing.T, mongoURI, dbName string) *MongoHelper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	return &MongoHelper{
		Client:   client,
		Database: client.Database(dbName),
		DBName:   dbName,
	}
}

func (m *MongoHelper) Close(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}

// CleanSlotStore removes every slot and appointment. Collections and their
// indexes are kept so the migrations stay applied.
func (m *MongoHelper) CleanSlotStore(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, name := range []string{repository.SlotsCollection, repository.AppointmentsCollection} {
		if _, err := m.Database.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			t.Fatalf("failed to clean collection %s: %v", name, err)
		}
	}
}

func (m *MongoHelper) InsertSlots(t *testing.T, slots ...*model.TimeSlot) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	docs := make([]any, len(slots))
	for i, s := range slots {
		docs[i] = s
	}
	if _, err := m.Database.Collection(repository.SlotsCollection).InsertMany(ctx, docs); err != nil {
		t.Fatalf("failed to insert slots: %v", err)
	}
}

func (m *MongoHelper) FindSlot(t *testing.T, id string) *model.TimeSlot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var slot model.TimeSlot
	if err := m.Database.Collection(repository.SlotsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&slot); err != nil {
		t.Fatalf("failed to load slot %s: %v", id, err)
	}
	return &slot
}

// ExpireHold moves a slot's hold deadline into the past.
func (m *MongoHelper) ExpireHold(t *testing.T, id string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	past := time.Now().Add(-time.Second).UTC()
	_, err := m.Database.Collection(repository.SlotsCollection).UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"hold_expires_at": past},
	})
	if err != nil {
		t.Fatalf("failed to expire hold on %s: %v", id, err)
	}
}

func (m *MongoHelper) CountAppointments(t *testing.T, filter bson.M) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := m.Database.Collection(repository.AppointmentsCollection).CountDocuments(ctx, filter)
	if err != nil {
		t.Fatalf("failed to count appointments: %v", err)
	}
	return count
}
