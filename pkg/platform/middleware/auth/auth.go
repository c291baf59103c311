package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"merchant/pkg/requestcontext"
)

const bearerPrefix = "Bearer "

// BearerToken extracts the credential from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// RequireBearerSecret rejects requests whose bearer credential does not match
// the shared secret. The comparison is constant time.
func RequireBearerSecret(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing credential",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, logger, r, "Missing or invalid Authorization header")
				return
			}
			if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				logger.WarnContext(ctx, "unauthorized access - invalid credential",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, logger, r, "Invalid credential")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, logger *slog.Logger, r *http.Request, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to write unauthorized response",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}
}
