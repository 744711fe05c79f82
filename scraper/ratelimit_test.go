package scraper

import (
	"context"
	"testing"
	"time"
)

func TestAdaptiveLimiterBackoffAndRecovery(t *testing.T) {
	l := NewAdaptiveLimiter(100*time.Millisecond, 1)

	l.ObserveRateLimited()
	if l.Delay() != 200*time.Millisecond {
		t.Errorf("delay = %v, want doubled 200ms", l.Delay())
	}
	// ceil(30s / 200ms) = 150 penalty tokens
	l.mu.Lock()
	tokens := l.penaltyTokens
	l.mu.Unlock()
	if tokens != 150 {
		t.Errorf("penalty tokens = %d, want 150", tokens)
	}

	// a second 429 doubles again
	l.ObserveRateLimited()
	if l.Delay() != 400*time.Millisecond {
		t.Errorf("delay = %v, want 400ms", l.Delay())
	}
}

func TestAdaptiveLimiterRestoresBaseRate(t *testing.T) {
	l := NewAdaptiveLimiter(time.Millisecond, 1)
	l.ObserveRateLimited()

	l.mu.Lock()
	l.penaltyTokens = 2 // shorten the penalty window for the test
	l.mu.Unlock()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if l.Delay() != time.Millisecond {
		t.Errorf("delay = %v, want base restored after penalty window", l.Delay())
	}
}

func TestAdaptiveLimiterWaitHonorsContext(t *testing.T) {
	l := NewAdaptiveLimiter(time.Hour, 1)
	ctx := context.Background()
	if err := l.Wait(ctx); err != nil { // burst token
		t.Fatal(err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(cancelled); err == nil {
		t.Error("wait must fail once the context expires")
	}
}

func TestAdaptiveLimiterDefaults(t *testing.T) {
	l := NewAdaptiveLimiter(0, 0)
	if l.Delay() != time.Second {
		t.Errorf("default delay = %v, want 1s", l.Delay())
	}
}
