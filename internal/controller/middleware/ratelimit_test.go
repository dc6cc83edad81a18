package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func serve(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_AllowsRequestUnderLimit(t *testing.T) {
	handler := NewRateLimiter(WithLimit(100, 200)).Middleware()(okHandler())

	if rr := serve(handler, "10.0.0.1:1234"); rr.Code != http.StatusOK {
		t.Errorf("got status %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRateLimitMiddleware_RejectsRequestOverLimit(t *testing.T) {
	handler := NewRateLimiter(WithLimit(1, 1)).Middleware()(okHandler())

	// First request uses the burst
	if rr := serve(handler, "10.0.0.1:1234"); rr.Code != http.StatusOK {
		t.Errorf("first request: got status %d, want %d", rr.Code, http.StatusOK)
	}

	rr := serve(handler, "10.0.0.1:5678")
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("second request: got status %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if got := rr.Header().Get("Retry-After"); got != "1" {
		t.Errorf("got Retry-After %q, want %q", got, "1")
	}
}

func TestRateLimitMiddleware_IndependentLimitsPerClient(t *testing.T) {
	handler := NewRateLimiter(WithLimit(1, 1)).Middleware()(okHandler())

	serve(handler, "10.0.0.1:1234")
	if rr := serve(handler, "10.0.0.1:1234"); rr.Code != http.StatusTooManyRequests {
		t.Errorf("client A: got status %d, want %d", rr.Code, http.StatusTooManyRequests)
	}

	if rr := serve(handler, "10.0.0.2:1234"); rr.Code != http.StatusOK {
		t.Errorf("client B: got status %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRateLimitMiddleware_UnlimitedWhenRateZero(t *testing.T) {
	handler := NewRateLimiter(WithLimit(0, 0)).Middleware()(okHandler())

	for i := range 10 {
		if rr := serve(handler, "10.0.0.1:1234"); rr.Code != http.StatusOK {
			t.Errorf("request %d: got status %d, want %d", i, rr.Code, http.StatusOK)
		}
	}
}

func TestRateLimiter_ExpiredEntryIsReplaced(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(WithLimit(1, 1), WithTTL(time.Minute))
	rl.now = func() time.Time { return now }

	first := rl.limiterFor("10.0.0.1")
	if rl.limiterFor("10.0.0.1") != first {
		t.Error("expected cached limiter within ttl")
	}

	now = now.Add(2 * time.Minute)
	if rl.limiterFor("10.0.0.1") == first {
		t.Error("expected a fresh limiter after ttl")
	}
}

func entries(rl *RateLimiter) int {
	n := 0
	rl.limiters.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestRateLimitMiddleware_ConcurrentSameClient(t *testing.T) {
	rl := NewRateLimiter(WithLimit(1, 5))
	handler := rl.Middleware()(okHandler())

	var allowed, limited atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				switch serve(handler, "10.0.0.1:1234").Code {
				case http.StatusOK:
					allowed.Add(1)
				case http.StatusTooManyRequests:
					limited.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load() + limited.Load(); got != 800 {
		t.Fatalf("expected 800 answered requests, got %d", got)
	}
	// burst of 5 plus at most a few refills while the test runs
	if n := allowed.Load(); n < 5 || n > 15 {
		t.Errorf("allowed %d requests, want about the burst of 5", n)
	}
	if n := entries(rl); n != 1 {
		t.Errorf("expected one cached client, got %d", n)
	}
}

func TestRateLimiter_EvictsExpiredClients(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(WithLimit(1, 1), WithTTL(time.Minute))
	rl.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		rl.limiterFor(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	if n := entries(rl); n != 1000 {
		t.Fatalf("expected 1000 cached clients, got %d", n)
	}

	now = now.Add(2 * time.Minute)
	rl.limiterFor("10.9.9.9")

	if n := entries(rl); n != 1 {
		t.Errorf("expected expired clients evicted, %d entries left", n)
	}
}

func TestRateLimiter_ActiveClientSurvivesSweep(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(WithLimit(1, 1), WithTTL(time.Minute))
	rl.now = func() time.Time { return now }

	active := rl.limiterFor("10.0.0.1")
	rl.limiterFor("10.0.0.2")

	now = now.Add(45 * time.Second)
	rl.limiterFor("10.0.0.1")

	now = now.Add(30 * time.Second)
	if rl.limiterFor("10.0.0.1") != active {
		t.Error("expected the recently used limiter to be kept")
	}
	if _, ok := rl.limiters.Load("10.0.0.2"); ok {
		t.Error("expected the idle client to be evicted")
	}
}
