package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Policy is a named fixed-window limit. Each policy counts requests in its
// own buckets, so exhausting one route group leaves the others usable.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	// LoginPolicy bounds password guessing per client.
	LoginPolicy = Policy{Name: "login", Limit: 10, Window: time.Minute}
	// RegisterPolicy bounds account creation per client.
	RegisterPolicy = Policy{Name: "register", Limit: 20, Window: time.Hour}
)

// RealIP extracts the client's address, preferring CF-Connecting-IP, then
// the first hop of X-Forwarded-For, then RemoteAddr.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type bucketKey struct {
	policy string
	client string
}

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter holds fixed-window counters per policy and client.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
	}
}

// Allow counts one request from client against p. When the request is
// over the limit it also returns how long until the window resets.
func (rl *RateLimiter) Allow(p Policy, client string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	key := bucketKey{policy: p.Name, client: client}
	b, ok := rl.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		rl.buckets[key] = &bucket{count: 1, resetAt: now.Add(p.Window)}
		return true, 0
	}
	b.count++
	if b.count > p.Limit {
		return false, b.resetAt.Sub(now)
	}
	return true, 0
}

// Cleanup removes expired buckets and returns how many were dropped.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	n := 0
	for key, b := range rl.buckets {
		if !now.Before(b.resetAt) {
			delete(rl.buckets, key)
			n++
		}
	}
	return n
}

// RateLimit returns middleware enforcing p per client address.
func RateLimit(limiter *RateLimiter, p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.Allow(p, RealIP(r))
			if !ok {
				secs := int(wait.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many "+p.Name+" attempts")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
