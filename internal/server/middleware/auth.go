package middleware

import (
	"log/slog"
	"net/http"
	"strings"
)

// SubjectVerifier validates a bearer token and returns its identity.
type SubjectVerifier func(token string) (string, error)

// NewBearerAuth rejects requests without a valid "Authorization: Bearer"
// token and records the identity in the request metadata.
func NewBearerAuth(logger *slog.Logger, verify SubjectVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			// couldn't extract metadata from request so something went wrong with previous middlewares
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			header := r.Header.Get("Authorization")
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(tokenString) == "" {
				logger.Warn("Bearer token missing in request", slog.String("ip", reqMeta.IP))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userID, err := verify(strings.TrimSpace(tokenString))
			if err != nil {
				logger.Warn("Invalid bearer token presented", slog.String("ip", reqMeta.IP), slog.Any("error", err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqMeta.UserID = userID
			next.ServeHTTP(w, r)
		})
	}
}
