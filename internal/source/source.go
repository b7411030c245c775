// Package source defines the data source capability consumed by the engine
// and the error taxonomy its implementations report.
package source

import (
	"context"
	"errors"

	"github.com/rshade/finwatch/internal/record"
)

// DataSource fetches records from an upstream provider.
//
// Retries and timeouts for a single call are the implementation's concern;
// the engine calls each method at most once per key or batch per cycle.
type DataSource interface {
	// FetchFull returns the complete record for key.
	FetchFull(ctx context.Context, key record.Key) (record.Record, error)

	// FetchPrices returns volatile-field patches for keys as one combined
	// request. Failure is all-or-nothing for the batch. Keys the upstream has
	// no quote for may be omitted from the result. Quote fields left zero
	// keep the cached value.
	FetchPrices(ctx context.Context, keys []record.Key) ([]record.PricePatch, error)
}

// Error taxonomy. Implementations wrap these with %w.
var (
	// ErrNotFound means the key does not exist upstream.
	ErrNotFound = errors.New("record not found")

	// ErrTransient means a network, timeout or upstream-availability failure.
	ErrTransient = errors.New("transient fetch failure")
)

// Error classes reported by Classify.
const (
	ClassNotFound  = "not_found"
	ClassTransient = "transient"
	ClassCanceled  = "canceled"
	ClassUnknown   = "unknown"
)

// Classify maps a fetch error to a class for logging. Callers treat every
// class the same way; the class only appears in logs.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, context.Canceled):
		return ClassCanceled
	case errors.Is(err, ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	default:
		return ClassUnknown
	}
}
