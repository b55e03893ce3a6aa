package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "openai"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	if err := limiter.Wait(ctx, "anthropic"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := limiter.Wait(ctx, "gemini"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	cancel()
	if err := limiter.Wait(ctx, "gemini"); err == nil {
		t.Error("expected error from cancelled wait")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 50; i++ {
		if !limiter.Allow("ollama") {
			t.Fatalf("request %d denied by unlimited limiter", i)
		}
	}
}

func TestLimiter_WaitWithDelay(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	start := time.Now()
	err := limiter.WaitWithDelay(ctx, "example.com", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitWithDelay failed: %v", err)
	}

	if d := time.Since(start); d < 50*time.Millisecond {
		t.Errorf("expected delay >= 50ms, got %v", d)
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "openai"); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Burst 1 is spent
	if limiter.Allow("openai") {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	// Keys are independent
	if !limiter.Allow("anthropic") {
		t.Errorf("expected allow for other key")
	}
}

func TestLimiter_SetRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetRate("slow", 0.1, 1)

	if !limiter.Allow("slow") {
		t.Errorf("first request should pass")
	}
	if limiter.Allow("slow") {
		t.Errorf("second request should fail")
	}
	if !limiter.Allow("fast") {
		t.Errorf("other key should pass")
	}
}

func TestLimiter_SetRateUnlimited(t *testing.T) {
	limiter := NewLimiter(0.1, 1)
	limiter.SetRate("hash", 0, 0)

	for i := 0; i < 20; i++ {
		if !limiter.Allow("hash") {
			t.Fatalf("request %d denied for unlimited key", i)
		}
	}
	if !limiter.Allow("openai") || limiter.Allow("openai") {
		t.Error("expected default limit on other keys")
	}
}
