package scraper

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter is the single token bucket governing all outbound
// HTTP. On a 429 it doubles the inter-request delay for the next
// ceil(30s / delay) tokens, then restores the base rate.
type AdaptiveLimiter struct {
	limiter *rate.Limiter

	mu            sync.Mutex
	baseDelay     time.Duration
	currentDelay  time.Duration
	penaltyTokens int
}

// NewAdaptiveLimiter builds a limiter issuing one token per delay with
// the given burst.
func NewAdaptiveLimiter(delay time.Duration, burst int) *AdaptiveLimiter {
	if delay <= 0 {
		delay = time.Second
	}
	if burst <= 0 {
		burst = 4
	}
	return &AdaptiveLimiter{
		limiter:      rate.NewLimiter(rate.Every(delay), burst),
		baseDelay:    delay,
		currentDelay: delay,
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *AdaptiveLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.penaltyTokens > 0 {
		l.penaltyTokens--
		if l.penaltyTokens == 0 {
			l.currentDelay = l.baseDelay
			l.limiter.SetLimit(rate.Every(l.baseDelay))
			log.Info().Dur("delay", l.baseDelay).Msg("rate limiter back to base rate")
		}
	}
	return nil
}

// ObserveRateLimited registers an upstream 429 and slows the bucket.
func (l *AdaptiveLimiter) ObserveRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentDelay *= 2
	l.penaltyTokens = int(math.Ceil(float64(30*time.Second) / float64(l.currentDelay)))
	l.limiter.SetLimit(rate.Every(l.currentDelay))
	log.Warn().
		Dur("delay", l.currentDelay).
		Int("penalty_tokens", l.penaltyTokens).
		Msg("upstream 429, backing off")
}

// Delay returns the current inter-request delay.
func (l *AdaptiveLimiter) Delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentDelay
}
