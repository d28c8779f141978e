package services

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy is the single retry/backoff policy for provider calls: full
// attempts with exponential backoff plus jitter. Any operation talking to an
// external SaaS goes through Do instead of rolling its own loop.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // 0..1 fraction of the delay added randomly
}

// DefaultRetryPolicy covers OpenAI and Infobip calls.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    30 * time.Second,
	Jitter:      0.2,
}

// Delay returns the backoff before the given attempt (0-based). Attempt 0 has
// no delay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}

// Do runs fn up to MaxAttempts times, backing off between attempts. retryable
// decides whether an error is transient; permanent errors return immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error, retryable func(error) bool) error {
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err = fn(ctx); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}
	return err
}
