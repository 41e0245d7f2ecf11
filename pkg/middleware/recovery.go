package middleware

import (
	"net/http"
	"runtime/debug"

	"clinicslots/pkg/auth"
	apperrors "clinicslots/pkg/errors"
	"clinicslots/pkg/logger"
)

// Recovery turns a handler panic into a 500. A panic in the middle of a hold
// or commit leaves the slot to the store's own transaction and expiry rules.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					holder, _ := auth.HolderFromContext(r.Context())
					log.Error("Panic recovered",
						"request_id", requestID(r),
						"holder", holder,
						"error", err,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)

					writeJSONError(w, http.StatusInternalServerError, apperrors.CodeInternal, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}
