package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware keeps one token bucket per client IP. Lookup runs are
// expensive, so the limit is low and the bucket map is pruned when it grows.
type RateLimitMiddleware struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    int
	enabled  bool
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const maxTrackedClients = 10000

// NewRateLimitMiddleware creates a per-IP rate limiter allowing limit
// requests per minute.
func NewRateLimitMiddleware(limit int, enabled bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiters: make(map[string]*clientLimiter),
		limit:    limit,
		enabled:  enabled,
	}
}

// Handler returns the middleware handler
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled || m.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		// Skip for health checks
		if r.URL.Path == "/health" || r.URL.Path == "/ready" {
			next.ServeHTTP(w, r)
			return
		}

		limiter := m.limiterFor(clientIP(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))

		if !limiter.Allow() {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) limiterFor(ip string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.limiters) > maxTrackedClients {
		m.pruneLocked()
	}

	cl, ok := m.limiters[ip]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(m.limit)/60.0), m.limit),
		}
		m.limiters[ip] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

func (m *RateLimitMiddleware) pruneLocked() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, cl := range m.limiters {
		if cl.lastSeen.Before(cutoff) {
			delete(m.limiters, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
