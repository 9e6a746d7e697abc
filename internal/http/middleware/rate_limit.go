package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/delcom/healthtrack/internal/http/response"
)

// RateLimiter applies a per-client fixed window. It protects the
// credential endpoints from brute forcing; the abuse guard handles the
// slower per-identity cooldowns.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu       sync.Mutex
	counters map[string]*windowState
	cleanup  time.Time
}

type windowState struct {
	count      int
	windowFrom time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		counters: make(map[string]*windowState),
		cleanup:  time.Now().Add(window),
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, resetAt := rl.allow(ClientIP(r))
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))
			if !allowed {
				retry := int(time.Until(resetAt).Round(time.Second).Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))
				response.Fail(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(key string) (allowed bool, remaining int, resetAt time.Time) {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.cleanup) {
		for k, st := range rl.counters {
			if now.Sub(st.windowFrom) > 2*rl.window {
				delete(rl.counters, k)
			}
		}
		rl.cleanup = now.Add(rl.window)
	}

	st, ok := rl.counters[key]
	if !ok || now.Sub(st.windowFrom) >= rl.window {
		st = &windowState{windowFrom: now}
		rl.counters[key] = st
	}
	resetAt = st.windowFrom.Add(rl.window)
	if st.count >= rl.limit {
		return false, 0, resetAt
	}
	st.count++
	return true, rl.limit - st.count, resetAt
}

// ClientIP extracts the remote host without the port.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
