package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestIPRateLimiterAllow(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{
		Rate:            rate.Limit(2),
		Burst:           2,
		CleanupInterval: time.Hour,
		MaxAge:          time.Hour,
	})
	defer rl.Stop()

	// The burst of 2 covers the first two requests.
	if !rl.Allow("192.168.1.1") {
		t.Fatal("first request should be allowed")
	}
	if !rl.Allow("192.168.1.1") {
		t.Fatal("second request should be allowed")
	}
	if rl.Allow("192.168.1.1") {
		t.Fatal("third request should exceed the burst")
	}

	// Each IP has its own bucket.
	if !rl.Allow("192.168.1.2") {
		t.Fatal("request from a different IP should be allowed")
	}
}

func TestIPRateLimiterCleanup(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{
		Rate:            rate.Limit(10),
		Burst:           10,
		CleanupInterval: time.Hour,
		MaxAge:          0, // expire immediately
	})
	defer rl.Stop()

	rl.Allow("10.0.0.1")

	rl.mu.Lock()
	count := len(rl.clients)
	rl.mu.Unlock()
	if count != 1 {
		t.Fatalf("clients = %d, want 1", count)
	}

	rl.cleanup()

	rl.mu.Lock()
	count = len(rl.clients)
	rl.mu.Unlock()
	if count != 0 {
		t.Fatalf("clients after cleanup = %d, want 0", count)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{
		Rate:            rate.Limit(1),
		Burst:           1,
		CleanupInterval: time.Hour,
		MaxAge:          time.Hour,
	})
	defer rl.Stop()

	handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", nil)
	req.RemoteAddr = "10.0.0.5:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.168.1.1:8080", "192.168.1.1"},
		{"[::1]:8080", "::1"},
		{"10.0.0.1", "10.0.0.1"}, // no port
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remoteAddr
		if got := extractIP(r); got != tt.want {
			t.Errorf("extractIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
