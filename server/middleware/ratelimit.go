package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/kbukum/whisperserver/resilience"
)

// pruneEvery is how many requests pass between sweeps of idle buckets.
const pruneEvery = 1024

// RateLimitConfig configures per-client rate limiting.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// RequestsPerMinute is the sustained rate allowed per key.
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	// Burst is the number of requests allowed at once.
	Burst int `yaml:"burst" mapstructure:"burst"`
	// KeyFunc extracts the key from a request. Defaults to ClientIP.
	KeyFunc func(*http.Request) string `yaml:"-" mapstructure:"-"`
}

// RateLimit rejects requests over the configured rate with 429.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	limiter := resilience.NewKeyedRateLimiter(resilience.RateLimiterConfig{
		Rate:  float64(cfg.RequestsPerMinute) / 60,
		Burst: cfg.Burst,
	})
	var seen atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if seen.Add(1)%pruneEvery == 0 {
				limiter.Prune()
			}
			if !limiter.Allow(cfg.KeyFunc(r)) {
				writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, or the remote address host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
