package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/vaultline/artkey/internal/domain"
)

// RateLimit applies a per-client-IP sliding window to the wrapped handler.
// The server mounts it on mutating routes only; reads stay unthrottled.
// Limiter errors fail open, since a Redis hiccup must not take bidding down
// with it.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := limiter.Allow(r.Context(), "ratelimit:api:"+clientIP(r), limit, window)
			if err == nil && !ok {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP trusts the leftmost X-Forwarded-For entry, then X-Real-IP, then
// the socket address. The deployment fronts the API with a proxy that
// rewrites these headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
