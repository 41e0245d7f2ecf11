package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"clinicslots/pkg/client"
)

const DefaultHealthCheckTimeout = 30 * time.Second

// TestEnv points the suite at a running slot store and the Mongo database
// behind it. The suite is skipped unless TEST_SERVER_URL is set.
type TestEnv struct {
	MongoURI     string
	DatabaseName string
	ServerURL    string
	JWTSecret    string
}

func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	serverURL := os.Getenv("TEST_SERVER_URL")
	if serverURL == "" {
		t.Skip("TEST_SERVER_URL not set, skipping slot store integration tests")
	}

	return &TestEnv{
		MongoURI:     getEnv("TEST_MONGO_URI", DefaultMongoURI),
		DatabaseName: getEnv("TEST_DB_NAME", DefaultDatabaseName),
		ServerURL:    serverURL,
		JWTSecret:    getEnv("TEST_JWT_SECRET", getEnv("JWT_SECRET", "")),
	}
}

// Setup connects to Mongo, empties the slot store collections and waits for
// the server to report healthy.
func (e *TestEnv) Setup(t *testing.T) *MongoHelper {
	t.Helper()

	if e.JWTSecret == "" {
		t.Fatal("TEST_JWT_SECRET must match the slot store's JWT_SECRET")
	}

	mongo := NewMongoHelper(t, e.MongoURI, e.DatabaseName)
	mongo.CleanSlotStore(t)

	probe := client.NewHttpClient("slot-store", e.ServerURL, 5*time.Second)
	if err := probe.WaitForHealthy(context.Background(), DefaultHealthCheckTimeout); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		mongo.CleanSlotStore(t)
		mongo.Close(t)
	})
	return mongo
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
