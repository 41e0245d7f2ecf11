package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	kafkamw "clinicslots/pkg/kafka/middleware"
	"clinicslots/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		pingErr  error
		status   int
		database string
	}{
		{"store reachable", nil, http.StatusOK, "ok"},
		{"store down", errors.New("no primary"), http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(pingFunc(func(context.Context) error { return tt.pingErr }), nil, kafkamw.NewMetrics(), logger.Discard())
			w := httptest.NewRecorder()
			h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil), httprouter.Params{})

			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			var resp HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Database != tt.database {
				t.Errorf("database = %q, want %q", resp.Database, tt.database)
			}
			if resp.Events == nil {
				t.Error("expected event metrics in readiness response")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler(pingFunc(func(context.Context) error { return nil }), nil, nil, logger.Discard())
	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil), httprouter.Params{})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
