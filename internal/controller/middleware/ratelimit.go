package middleware

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter limits requests per client address with a token bucket.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	limiters sync.Map // client -> *cachedLimiter
	now      func() time.Time

	// lastSweep is the unix nano time expired clients were last evicted.
	lastSweep atomic.Int64
}

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithLimit sets the sustained rate per second and the burst. A rate of 0
// disables limiting.
func WithLimit(perSecond float64, burst int) Option {
	return func(rl *RateLimiter) {
		rl.limit = rate.Limit(perSecond)
		rl.burst = burst
	}
}

// WithTTL sets how long an idle client's bucket is kept.
func WithTTL(ttl time.Duration) Option {
	return func(rl *RateLimiter) {
		rl.ttl = ttl
	}
}

// NewRateLimiter defaults to 1 request per second with a burst of 5.
func NewRateLimiter(opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		limit: 1,
		burst: 5,
		ttl:   5 * time.Minute,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	if rl.burst <= 0 {
		rl.burst = 1
	}
	return rl
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Limit=0 means unlimited
			if rl.limit > 0 {
				if !rl.limiterFor(clientKey(r)).Allow() {
					w.Header().Set("Retry-After", "1")
					writeError(w, "Too Many Requests", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt atomic.Int64 // unix nanos
}

func (rl *RateLimiter) newEntry(now time.Time) *cachedLimiter {
	c := &cachedLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
	c.expiresAt.Store(now.Add(rl.ttl).UnixNano())
	return c
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()
	rl.sweep(now)

	for {
		v, ok := rl.limiters.Load(key)
		if !ok {
			fresh := rl.newEntry(now)
			actual, loaded := rl.limiters.LoadOrStore(key, fresh)
			if !loaded {
				return fresh.limiter
			}
			v = actual
		}

		cached := v.(*cachedLimiter)
		if now.UnixNano() < cached.expiresAt.Load() {
			cached.expiresAt.Store(now.Add(rl.ttl).UnixNano())
			return cached.limiter
		}

		// expired, replace unless another request already did
		fresh := rl.newEntry(now)
		if rl.limiters.CompareAndSwap(key, cached, fresh) {
			return fresh.limiter
		}
	}
}

// sweep evicts expired clients at most once per ttl.
func (rl *RateLimiter) sweep(now time.Time) {
	last := rl.lastSweep.Load()
	if now.UnixNano()-last < int64(rl.ttl) {
		return
	}
	if !rl.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	rl.limiters.Range(func(key, v any) bool {
		if cached := v.(*cachedLimiter); now.UnixNano() >= cached.expiresAt.Load() {
			rl.limiters.CompareAndDelete(key, cached)
		}
		return true
	})
}

// clientKey identifies the caller by remote host.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
