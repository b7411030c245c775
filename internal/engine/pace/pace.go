// Package pace provides rate-limiting policies applied between sequential
// units of upstream work (one full fetch, one price batch).
package pace

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Policy names accepted by NewFactory.
const (
	PolicyFixed       = "fixed"
	PolicyTokenBucket = "token_bucket"
)

// Pacer blocks between units of work. Wait returns early with the context's
// error when ctx is done.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Factory creates a fresh Pacer for each cycle so cycles never share budget.
type Factory func() Pacer

// Fixed waits a constant delay on every call.
type Fixed struct {
	Delay time.Duration
}

// Wait sleeps for the configured delay or until ctx is done.
func (f Fixed) Wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(f.Delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// TokenBucket spaces calls at most one per interval using a token bucket with
// a burst of one. The initial token is spent at construction so the first
// Wait is also paced.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a token bucket pacer allowing one unit per interval.
func NewTokenBucket(interval time.Duration) *TokenBucket {
	if interval <= 0 {
		return &TokenBucket{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	l := rate.NewLimiter(rate.Every(interval), 1)
	l.Allow()
	return &TokenBucket{limiter: l}
}

// Wait blocks until a token is available or ctx is done.
func (b *TokenBucket) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// NewFactory returns a Factory for the named policy.
func NewFactory(policy string, interval time.Duration) (Factory, error) {
	switch policy {
	case "", PolicyFixed:
		return func() Pacer { return Fixed{Delay: interval} }, nil
	case PolicyTokenBucket:
		return func() Pacer { return NewTokenBucket(interval) }, nil
	default:
		return nil, fmt.Errorf("unknown pacing policy %q (want %s or %s)", policy, PolicyFixed, PolicyTokenBucket)
	}
}
