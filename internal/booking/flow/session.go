package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clinicslots/pkg/clock"
	"clinicslots/pkg/model"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Snapshot is what survives a reload: enough to rebuild the flow and its
// countdown from the absolute hold deadline.
type Snapshot struct {
	State         State               `json:"state"`
	Mode          Mode                `json:"mode"`
	Draft         *model.BookingDraft `json:"draft,omitempty"`
	Hold          *model.Hold         `json:"hold,omitempty"`
	Month         string              `json:"month,omitempty"`
	ViewDate      string              `json:"view_date,omitempty"`
	AppointmentID string              `json:"appointment_id,omitempty"`
	SavedAt       time.Time           `json:"saved_at"`
}

type SessionStore interface {
	Save(ctx context.Context, sessionID string, snap *Snapshot) error
	Load(ctx context.Context, sessionID string) (*Snapshot, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemorySessionStore keeps encoded snapshots so callers never share the
// controller's pointers.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   clock.Clock
}

func NewMemorySessionStore(ttl time.Duration, clk clock.Clock) *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		clock:   clk,
	}
}

func (s *MemorySessionStore) Save(_ context.Context, sessionID string, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = memoryEntry{data: data, expiresAt: s.clock.Now().Add(s.ttl)}
	return nil
}

func (s *MemorySessionStore) Load(_ context.Context, sessionID string) (*Snapshot, bool, error) {
	s.mu.Lock()
	entry, ok := s.entries[sessionID]
	if ok && !s.clock.Now().Before(entry.expiresAt) {
		delete(s.entries, sessionID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, false, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(entry.data, &snap); err != nil {
		return nil, false, fmt.Errorf("decode session: %w", err)
	}
	return &snap, true, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return "booking_session:" + sessionID
}

func (s *RedisSessionStore) Save(ctx context.Context, sessionID string, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (*Snapshot, bool, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("redis get session: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("decode session: %w", err)
	}
	return &snap, true, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}
