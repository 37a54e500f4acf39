package rpc

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"solation/observability"
)

// RateLimit is a token bucket applied per caller.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per authenticated caller, falling back to
// the client IP for anonymous routes. A zero PerSecond disables throttling.
type RateLimiter struct {
	limit    RateLimit
	idleTTL  time.Duration
	clockNow func() time.Time

	mu        sync.Mutex
	visitors  map[string]*rateEntry
	lastSweep time.Time
}

func NewRateLimiter(limit RateLimit) *RateLimiter {
	if limit.Burst <= 0 {
		limit.Burst = 1
	}
	return &RateLimiter{
		limit:    limit,
		idleTTL:  5 * time.Minute,
		clockNow: time.Now,
		visitors: make(map[string]*rateEntry),
	}
}

func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r == nil || r.limit.PerSecond <= 0 {
			next.ServeHTTP(w, req)
			return
		}
		if !r.Allow(visitorKey(req)) {
			observability.HTTP().RecordThrottle(routePattern(req), "rate_limit")
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "RateLimited", http.StatusText(http.StatusTooManyRequests))
			return
		}
		next.ServeHTTP(w, req)
	})
}

// Allow reports whether the visitor identified by key may proceed.
func (r *RateLimiter) Allow(key string) bool {
	now := r.clockNow()
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.lastSweep) > r.idleTTL {
		for id, entry := range r.visitors {
			if now.Sub(entry.lastSeen) > r.idleTTL {
				delete(r.visitors, id)
			}
		}
		r.lastSweep = now
	}
	entry, ok := r.visitors[key]
	if !ok {
		entry = &rateEntry{limiter: rate.NewLimiter(rate.Limit(r.limit.PerSecond), r.limit.Burst)}
		r.visitors[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func visitorKey(r *http.Request) string {
	if caller, ok := CallerFromContext(r.Context()); ok {
		return "addr:" + caller.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
