package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clinicslots/pkg/auth"
	"clinicslots/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type stubVerifier struct {
	holder string
	err    error
}

func (s stubVerifier) Verify(string) (string, error) { return s.holder, s.err }

func TestAuthenticate(t *testing.T) {
	log := testLogger()

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Authenticate(stubVerifier{holder: "p1"}, log)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slots", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/slots", nil)
		req.Header.Set("Authorization", "Bearer bad")
		rec := httptest.NewRecorder()
		Authenticate(stubVerifier{err: auth.ErrInvalidToken}, log)(okHandler()).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("valid token sets holder", func(t *testing.T) {
		var seen string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = auth.HolderFromContext(r.Context())
		})
		req := httptest.NewRequest(http.MethodGet, "/slots", nil)
		req.Header.Set("Authorization", "Bearer good")
		Authenticate(stubVerifier{holder: "p1"}, log)(next).ServeHTTP(httptest.NewRecorder(), req)
		if seen != "p1" {
			t.Errorf("holder = %q, want p1", seen)
		}
	})
}

func TestHolderRateLimit_PerHolderBuckets(t *testing.T) {
	limiter := NewHolderRateLimiter(0.001, 2, testLogger())
	defer limiter.Stop()

	handler := HolderRateLimit(limiter)(okHandler())
	call := func(holder string) int {
		req := httptest.NewRequest(http.MethodPost, "/slots/hold", nil)
		req = req.WithContext(auth.WithHolder(req.Context(), holder))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if call("a") != http.StatusOK || call("a") != http.StatusOK {
		t.Fatalf("first two requests within burst should pass")
	}
	if got := call("a"); got != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", got)
	}
	if got := call("b"); got != http.StatusOK {
		t.Errorf("other holder should have its own bucket, got %d", got)
	}
}

func TestContentTypeValidation(t *testing.T) {
	handler := ContentTypeValidation(testLogger())(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/slots/hold", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/slots/hold", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slots", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET should not require content type, got %d", rec.Code)
	}
}

func TestRequestTimeout_WritesTimeoutResponse(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	rec := httptest.NewRecorder()
	RequestTimeout(20*time.Millisecond)(slow).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()
	Recovery(testLogger())(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRequestLogging_PropagatesRequestID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestID(r)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	RequestLogging(testLogger())(next).ServeHTTP(rec, req)

	if seen != "req-123" {
		t.Errorf("request id = %q, want req-123", seen)
	}
	if rec.Header().Get(RequestIDHeader) != "req-123" {
		t.Errorf("response should echo request id")
	}
}
