package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"gigaproxy/internal/openai"
)

// RateLimiter is a sliding-window request counter keyed by API key or, when
// none is presented, by client IP.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	requests  map[string][]time.Time
	lastSweep time.Time
}

func NewRateLimiter(limit int, window time.Duration, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}

	return &RateLimiter{
		limit:     limit,
		window:    window,
		now:       now,
		requests:  make(map[string][]time.Time),
		lastSweep: now(),
	}
}

// Allow records a request for the key and reports whether it is within the
// limit, along with the remaining budget and reset time.
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, reset time.Time) {
	now := rl.now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweepLocked(now, cutoff)

	kept := rl.requests[key][:0]
	for _, ts := range rl.requests[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rl.limit {
		rl.requests[key] = kept
		return false, 0, kept[0].Add(rl.window)
	}

	kept = append(kept, now)
	rl.requests[key] = kept

	return true, rl.limit - len(kept), now.Add(rl.window)
}

// sweepLocked drops entries for keys whose requests have all aged out, at
// most once per window, so the map does not grow with every key ever seen.
func (rl *RateLimiter) sweepLocked(now, cutoff time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}

	rl.lastSweep = now

	for key, times := range rl.requests {
		kept := times[:0]
		for _, ts := range times {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}

		if len(kept) == 0 {
			delete(rl.requests, key)
			continue
		}

		rl.requests[key] = kept
	}
}

type RateLimitMiddleware struct {
	limiter *RateLimiter
	logger  *slog.Logger
}

func NewRateLimitMiddleware(limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	rlm := &RateLimitMiddleware{
		limiter: NewRateLimiter(limit, window, nil),
		logger:  logger,
	}

	return rlm.middleware
}

func (rlm *RateLimitMiddleware) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)

		allowed, remaining, reset := rlm.limiter.Allow(key)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rlm.limiter.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			rlm.logger.Warn("Rate limit exceeded", "key_prefix", keyPrefix(key))
			writeError(w, http.StatusTooManyRequests,
				"Rate limit exceeded. Please try again later.",
				openai.ErrTypeRateLimit, "rate_limit_exceeded")

			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey prefers the presented API key so limits follow credentials
// rather than NAT'd addresses.
func clientKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
