package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

const APIKeyHeader = "X-API-Key"

// Auth is a middleware factory that returns a new authentication middleware.
// It checks for a valid API key in the X-API-Key header. With no keys
// configured every request passes.
func Auth(keys []string, logger *slog.Logger) func(http.Handler) http.Handler {
	allowed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			allowed = append(allowed, []byte(k))
		}
	}
	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(APIKeyHeader)
			if apiKey == "" {
				logger.Warn("API key missing from request", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: API key required", http.StatusUnauthorized)
				return
			}

			if !validKey(allowed, []byte(apiKey)) {
				logger.Warn("invalid API key provided", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: Invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validKey(allowed [][]byte, key []byte) bool {
	ok := 0
	for _, k := range allowed {
		ok |= subtle.ConstantTimeCompare(k, key)
	}
	return ok == 1
}
