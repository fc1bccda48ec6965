// Package auth guards the HTTP surface with API keys and per-key rate
// limits, and carries the caller identity through the request context.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"thoughtpost/pkg/config"
	"thoughtpost/pkg/logger"
)

type ctxUserKey struct{}

// exempt paths bypass authentication entirely.
var exempt = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
}

// Middleware returns the request guard. When no API keys are configured
// the key check is skipped (local development); the identity header is
// still required on API routes.
func Middleware(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	keys := make(map[string]struct{}, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	pool := &limiterPool{rps: cfg.RateLimit.RPS, burst: cfg.RateLimit.Burst}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			key := apiKey(r)
			if len(keys) > 0 {
				if key == "" || !keyAllowed(keys, key) {
					logger.Warn("api_key_rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
					http.Error(w, `{"error":"invalid or missing api key"}`, http.StatusUnauthorized)
					return
				}
			}

			// Rate limit per key; anonymous callers share one bucket
			// keyed by remote address.
			limKey := key
			if limKey == "" {
				limKey = r.RemoteAddr
			}
			if !pool.Allow(limKey) {
				logger.Warn("rate_limited", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			if userID := strings.TrimSpace(r.Header.Get("X-User-ID")); userID != "" {
				r = r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the caller identity or empty string.
func UserIDFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxUserKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func apiKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("X-API-Key")); k != "" {
		return k
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return ""
}

func keyAllowed(keys map[string]struct{}, key string) bool {
	for k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}
