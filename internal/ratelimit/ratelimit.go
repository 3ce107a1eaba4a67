// Package ratelimit provides a token-bucket limiter for pacing work that
// sits outside the HTTP layer — record-by-record ETL upload loops, in
// particular, where internal/httpclient's own per-request limiter doesn't
// apply.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Limiter is a token-bucket rate limiter. It allows up to Rate events per
// second, with a burst of one second's worth of tokens (at least one).
type Limiter struct {
	mu       sync.Mutex
	rate     float64
	tokens   float64
	last     time.Time
	maxBurst float64
}

// New creates a Limiter that allows r events per second. r <= 0 disables
// pacing entirely — Wait returns immediately.
func New(r float64) *Limiter {
	burst := math.Max(r, 1)
	return &Limiter{
		rate:     r,
		tokens:   burst,
		last:     time.Now(),
		maxBurst: burst,
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.rate <= 0 {
		return nil
	}
	for {
		l.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(l.last).Seconds()
		l.tokens = math.Min(l.tokens+elapsed*l.rate, l.maxBurst)
		l.last = now

		if l.tokens >= 1.0 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}

		wait := time.Duration((1.0-l.tokens)/l.rate*1000) * time.Millisecond
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
