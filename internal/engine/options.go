package engine

import (
	"fmt"
	"time"

	"github.com/rshade/finwatch/internal/engine/batch"
	"github.com/rshade/finwatch/internal/engine/cache"
	"github.com/rshade/finwatch/internal/engine/pace"
)

// Default tunables.
const (
	DefaultInterItemDelay    = 500 * time.Millisecond
	DefaultRefreshInterval   = 30 * time.Second
	DefaultRefreshBatchSize  = batch.DefaultBatchSize
	DefaultRefreshBatchDelay = 500 * time.Millisecond
	DefaultFullCacheTTL      = cache.DefaultTTL
)

// Options are the engine tunables.
type Options struct {
	// InterItemDelay is waited between sequential full fetches.
	InterItemDelay time.Duration

	// RefreshInterval is the period between price refresh cycles.
	RefreshInterval time.Duration

	// RefreshBatchSize is the number of keys per batched price fetch.
	RefreshBatchSize int

	// RefreshBatchDelay is waited between price batches.
	RefreshBatchDelay time.Duration

	// FullCacheTTL is the age beyond which a cached record is re-fetched by a
	// new full cycle instead of reused. Zero disables expiry.
	FullCacheTTL time.Duration

	// PacingPolicy is pace.PolicyFixed or pace.PolicyTokenBucket.
	PacingPolicy string
}

// DefaultOptions returns the default tunables.
func DefaultOptions() Options {
	return Options{
		InterItemDelay:    DefaultInterItemDelay,
		RefreshInterval:   DefaultRefreshInterval,
		RefreshBatchSize:  DefaultRefreshBatchSize,
		RefreshBatchDelay: DefaultRefreshBatchDelay,
		FullCacheTTL:      DefaultFullCacheTTL,
		PacingPolicy:      pace.PolicyFixed,
	}
}

// Validate checks every tunable is in range.
func (o Options) Validate() error {
	switch {
	case o.InterItemDelay < 0:
		return fmt.Errorf("%w: inter-item delay %s is negative", ErrInvalidOptions, o.InterItemDelay)
	case o.RefreshInterval <= 0:
		return fmt.Errorf("%w: refresh interval must be positive", ErrInvalidOptions)
	case o.RefreshBatchSize < batch.MinBatchSize || o.RefreshBatchSize > batch.MaxBatchSize:
		return fmt.Errorf("%w: %w", ErrInvalidOptions, batch.ErrInvalidBatchSize)
	case o.RefreshBatchDelay < 0:
		return fmt.Errorf("%w: refresh batch delay %s is negative", ErrInvalidOptions, o.RefreshBatchDelay)
	}
	if err := cache.ValidateTTL(o.FullCacheTTL); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if _, err := pace.NewFactory(o.PacingPolicy, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithOptions replaces the tunables.
func WithOptions(o Options) Option {
	return func(e *Engine) {
		e.opts = o
	}
}

// WithObserver registers a callback for engine events. Observers run on the
// engine's goroutines and must not block.
func WithObserver(fn func(Event)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.observers = append(e.observers, fn)
		}
	}
}

// WithCache makes the engine use an existing store.
func WithCache(s *cache.Store) Option {
	return func(e *Engine) {
		e.cache = s
	}
}
