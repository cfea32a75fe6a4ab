package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewLimiter(3, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("10.0.0.1", now) {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if limiter.Allow("10.0.0.1", now) {
		t.Fatalf("expected fourth request to be throttled")
	}
	if !limiter.Allow("10.0.0.2", now) {
		t.Fatalf("other clients must have their own bucket")
	}
}

func TestLimiterRefillsOverWindow(t *testing.T) {
	limiter := NewLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	limiter.Allow("client", now)
	limiter.Allow("client", now)
	if limiter.Allow("client", now) {
		t.Fatalf("expected throttle before refill")
	}
	if !limiter.Allow("client", now.Add(31*time.Second)) {
		t.Fatalf("expected a token after half a window")
	}
}
