package auth

import (
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials identify the signed-in patient to the slot store.
type Credentials struct {
	Holder string
	Bearer string
}

// Identity supplies the current session's credentials. ok is false when
// nobody is signed in.
type Identity interface {
	Credentials() (Credentials, bool)
}

// SessionIdentity holds the credentials of one client session.
type SessionIdentity struct {
	mu    sync.RWMutex
	creds *Credentials
}

func NewSessionIdentity() *SessionIdentity {
	return &SessionIdentity{}
}

// SignIn stores bearer and extracts the holder from its subject. The
// signature is checked by the slot store, not here.
func (s *SessionIdentity) SignIn(bearer string) error {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(bearer, claims); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	s.mu.Lock()
	s.creds = &Credentials{Holder: claims.Subject, Bearer: bearer}
	s.mu.Unlock()
	return nil
}

func (s *SessionIdentity) SignOut() {
	s.mu.Lock()
	s.creds = nil
	s.mu.Unlock()
}

func (s *SessionIdentity) Credentials() (Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return Credentials{}, false
	}
	return *s.creds, true
}
