package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminAuth gates the admin routes behind a static key, taken from either a
// Bearer token or the X-API-Key header. With no key configured the routes
// answer 401 unconditionally: these endpoints pause the engine, so
// unconfigured must mean disabled, never open.
func AdminAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				deny(w, "admin api disabled")
				return
			}

			presented := adminToken(r)
			if presented == "" {
				deny(w, "missing authentication token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
				deny(w, "invalid authentication token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func adminToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func deny(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
