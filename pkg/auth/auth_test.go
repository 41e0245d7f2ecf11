package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManager_IssueAndVerify(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	token, err := m.Issue("patient-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	holder, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if holder != "patient-1" {
		t.Errorf("holder = %q, want patient-1", holder)
	}
}

func TestManager_VerifyRejects(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	other := NewManager("other-secret", time.Hour)

	foreign, _ := other.Issue("patient-1")

	expiring := NewManager("test-secret", time.Minute)
	expiring.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiring.Issue("patient-1")

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("Verify() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHolderContext(t *testing.T) {
	if _, ok := HolderFromContext(context.Background()); ok {
		t.Errorf("expected no holder on empty context")
	}
	ctx := WithHolder(context.Background(), "p-9")
	if holder, ok := HolderFromContext(ctx); !ok || holder != "p-9" {
		t.Errorf("HolderFromContext() = %q, %v", holder, ok)
	}
}

func TestSessionIdentity_SignInExtractsSubject(t *testing.T) {
	m := NewManager("s", time.Hour)
	token, _ := m.Issue("patient-7")

	id := NewSessionIdentity()
	if _, ok := id.Credentials(); ok {
		t.Fatalf("expected no credentials before sign-in")
	}
	if err := id.SignIn(token); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	creds, ok := id.Credentials()
	if !ok || creds.Holder != "patient-7" || creds.Bearer != token {
		t.Errorf("unexpected credentials %+v ok=%v", creds, ok)
	}

	id.SignOut()
	if _, ok := id.Credentials(); ok {
		t.Errorf("expected credentials cleared after sign-out")
	}

	if err := id.SignIn("junk"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("SignIn(junk) error = %v, want ErrInvalidToken", err)
	}
}
