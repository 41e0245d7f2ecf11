package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   SlotNotFound("s-1"),
			expected: "SLOT_NOT_FOUND: slot not found",
		},
		{
			name:     "with underlying error",
			appErr:   Internal("internal error", errors.New("database connection failed")),
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSlotErrors_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"conflict", SlotConflict("s-1"), CodeSlotConflict, http.StatusConflict},
		{"hold expired", HoldExpired("s-1"), CodeHoldExpired, http.StatusGone},
		{"not found", SlotNotFound("s-1"), CodeSlotNotFound, http.StatusNotFound},
		{"validation", Validation("bad", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"profile", ProfileIncomplete([]string{"birth_date"}), CodeProfileIncomplete, http.StatusForbidden},
		{"rate limited", RateLimited("slow down"), CodeRateLimited, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, tt.err.StatusCode())
			}
		})
	}
}

func TestSlotConflict_CarriesSlotID(t *testing.T) {
	err := SlotConflict("slot-42")
	if err.Details["slot_id"] != "slot-42" {
		t.Errorf("expected slot_id detail, got %v", err.Details)
	}
}

func TestHasCode_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("commit failed: %w", HoldExpired("s-1"))

	if !HasCode(wrapped, CodeHoldExpired) {
		t.Errorf("HasCode() should see through fmt.Errorf wrapping")
	}
	if HasCode(wrapped, CodeSlotConflict) {
		t.Errorf("HasCode() matched the wrong code")
	}
	if HasCode(errors.New("plain"), CodeHoldExpired) {
		t.Errorf("HasCode() should be false for non-AppError")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Appointment")
	regularErr := errors.New("regular error")

	if AsAppError(appErr) != appErr {
		t.Errorf("AsAppError() should return same AppError")
	}
	if AsAppError(fmt.Errorf("ctx: %w", appErr)) != appErr {
		t.Errorf("AsAppError() should unwrap to the AppError")
	}

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", Transport("slot store", errors.New("connection refused")), true},
		{"timeout", Timeout("slow"), true},
		{"remote 502", FromStatus(http.StatusBadGateway, "", "", nil), true},
		{"conflict", SlotConflict("s-1"), false},
		{"validation", Validation("bad", nil), false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequiresSignIn(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no local credentials", SignInRequired(), true},
		{"server rejected token", FromStatus(http.StatusUnauthorized, CodeUnauthorized, "invalid bearer token", nil), true},
		{"bare 401", FromStatus(http.StatusUnauthorized, "", "", nil), true},
		{"wrapped", fmt.Errorf("commit: %w", Unauthorized("expired")), true},
		{"forbidden", Forbidden("not yours"), false},
		{"hold expired", HoldExpired("s-1"), false},
		{"plain error", errors.New("401"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequiresSignIn(tt.err); got != tt.want {
				t.Errorf("RequiresSignIn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromStatus_DefaultsCodeFromStatus(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusConflict, CodeSlotConflict},
		{http.StatusGone, CodeHoldExpired},
		{http.StatusNotFound, CodeSlotNotFound},
		{http.StatusUnprocessableEntity, CodeValidation},
		{http.StatusServiceUnavailable, CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus(tt.status, "", "", nil)
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message == "" {
				t.Errorf("expected default message from status text")
			}
		})
	}

	explicit := FromStatus(http.StatusNotFound, CodeNotFound, "appointment not found", nil)
	if explicit.Code != CodeNotFound {
		t.Errorf("explicit code should win, got %s", explicit.Code)
	}
}
