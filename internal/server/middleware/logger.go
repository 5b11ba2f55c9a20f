package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// NewRequestLogger logs each request once it has been served. For websocket
// upgrades that is when the socket closes.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			var ip string
			if ok {
				ip = reqMeta.IP
			}

			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("HTTP request served",
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.String("ip", ip),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
