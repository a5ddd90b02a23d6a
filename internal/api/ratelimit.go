package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// limiterSweepEvery bounds how often idle buckets are pruned.
	limiterSweepEvery = 5 * time.Minute

	// limiterIdleAfter is how long a client may be silent before its
	// bucket is dropped.
	limiterIdleAfter = 10 * time.Minute
)

// ipLimiter applies a token bucket per client IP using golang.org/x/time/rate.
// Idle buckets are pruned inline during allow calls; there is no background
// goroutine to manage.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
	swept   time.Time
}

// bucket pairs a rate limiter with the last time its IP was seen.
type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// newIPLimiter creates a limiter that refills perSecond tokens per second
// with the given burst as maximum (and initial) allowance per IP.
func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(perSecond),
		burst:   burst,
		swept:   time.Now(),
	}
}

// allow reports whether a request from the given IP may proceed.
func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.swept) > limiterSweepEvery {
		for key, b := range l.buckets {
			if now.Sub(b.lastSeen) > limiterIdleAfter {
				delete(l.buckets, key)
			}
		}
		l.swept = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.lim.Allow()
}

// rateLimitMiddleware rejects requests from IPs that exhausted their token
// bucket with 429 and a Retry-After hint.
func rateLimitMiddleware(l *ipLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !l.allow(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP from the request.
//
// When trustProxy is true, X-Real-IP wins, then the first X-Forwarded-For
// entry. Header values are validated with net.ParseIP so arbitrary strings
// cannot become limiter keys. When trustProxy is false only RemoteAddr is
// used, the safe default for direct exposure.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}

		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			raw := xff
			if first, _, ok := strings.Cut(xff, ","); ok {
				raw = first
			}
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
