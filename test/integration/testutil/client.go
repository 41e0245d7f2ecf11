package testutil

import (
	"testing"
	"time"

	"clinicslots/pkg/auth"
	"clinicslots/pkg/client"
)

const ClientTimeout = 10 * time.Second

// Patient signs holder in and returns a slot store client acting as them.
func (e *TestEnv) Patient(t *testing.T, holder string) *client.SlotStoreClient {
	t.Helper()

	token, err := auth.NewManager(e.JWTSecret, time.Hour).Issue(holder)
	if err != nil {
		t.Fatalf("failed to issue token for %s: %v", holder, err)
	}
	identity := auth.NewSessionIdentity()
	if err := identity.SignIn(token); err != nil {
		t.Fatalf("failed to sign in %s: %v", holder, err)
	}
	return client.NewSlotStoreClient(e.ServerURL, ClientTimeout, identity)
}

// Raw returns an unauthenticated HTTP client for the slot store.
func (e *TestEnv) Raw() *client.HttpClient {
	return client.NewHttpClient("slot-store", e.ServerURL, ClientTimeout)
}
