package middleware

import (
	"net/http"
	"strings"

	"clinicslots/pkg/auth"
	"clinicslots/pkg/logger"
)

// TokenVerifier resolves a bearer token to the holder it identifies.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// Authenticate requires a valid bearer token and stores its holder on the
// request context.
func Authenticate(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}

			holder, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				log.Warn("Rejected bearer token",
					"request_id", requestID(r),
					"path", r.URL.Path,
					"error", err,
				)
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithHolder(r.Context(), holder)))
		})
	}
}
