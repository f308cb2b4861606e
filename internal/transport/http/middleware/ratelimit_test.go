package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimit_RejectsAfterBurst(t *testing.T) {
	// 4 per minute gives a burst of 2
	handler := RateLimit(4, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/alerts/device-token", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("first two requests should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request should be limited, got %d", codes[2])
	}

	t.Log("✓ Burst is enforced per IP")
}

func TestRateLimit_SeparateBucketsPerIP(t *testing.T) {
	handler := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, addr := range []string{"198.51.100.1:1000", "198.51.100.2:1000"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", addr, rr.Code)
		}
	}
}

func TestRateLimit_ErrorBody(t *testing.T) {
	handler := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var rr *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1"
		rr = httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
	}

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("unexpected Retry-After %q", rr.Header().Get("Retry-After"))
	}
	if got := rr.Body.String(); got != "{\"ok\":false,\"error\":\"Too many requests\"}\n" {
		t.Errorf("unexpected body %q", got)
	}
}

func TestIPLimiter_EvictsIdleClients(t *testing.T) {
	limiter := newIPLimiter(10, time.Minute)
	clock := time.Unix(1700000000, 0)
	limiter.now = func() time.Time { return clock }
	limiter.lastSweep = clock

	for i := 0; i < 50; i++ {
		limiter.get(fmt.Sprintf("198.51.100.%d", i))
	}
	if got := limiter.size(); got != 50 {
		t.Fatalf("expected 50 tracked clients, got %d", got)
	}

	// one client stays active while the rest go quiet
	clock = clock.Add(30 * time.Second)
	limiter.get("198.51.100.0")

	clock = clock.Add(45 * time.Second)
	limiter.get("203.0.113.9")

	if got := limiter.size(); got != 2 {
		t.Errorf("expected idle clients to be dropped, %d tracked", got)
	}
	if _, ok := limiter.limiters["198.51.100.0"]; !ok {
		t.Error("recently seen client should be kept")
	}

	t.Log("✓ Idle client buckets are evicted")
}
