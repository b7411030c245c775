package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/rshade/finwatch/internal/engine/pace"
)

// Default batch processing configuration.
const (
	// DefaultBatchSize is the default number of keys per price batch.
	DefaultBatchSize = 5

	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1

	// MaxBatchSize is the maximum allowed batch size.
	MaxBatchSize = 1000
)

// Common batch processing errors.
var (
	ErrInvalidBatchSize = errors.New("batch size must be between 1 and 1000")
	ErrNilCallback      = errors.New("batch callback cannot be nil")

	// ErrStop is returned by a callback to abandon the remaining batches.
	// Process returns it (possibly joined with earlier batch failures).
	ErrStop = errors.New("batch processing stopped")
)

// BatchCallback is a function that processes a single batch of items.
// It receives the batch items and batch index (0-based). A returned error is
// recorded and processing continues with the next batch, unless the error is
// ErrStop.
//
//nolint:revive // BatchCallback is the canonical name for this exported type.
type BatchCallback[T any] func(ctx context.Context, batch []T, batchIndex int) error

// ProgressCallback is an optional callback invoked after each batch is processed.
type ProgressCallback func(done, total int)

// Processor splits items into fixed-size batches and processes them sequentially.
type Processor[T any] struct {
	// batchSize is the number of items per batch.
	batchSize int

	// pacer is waited on between batches.
	pacer pace.Pacer

	// onProgress is an optional callback for progress updates.
	onProgress ProgressCallback
}

// NewProcessor creates a new batch processor with the given batch size.
func NewProcessor[T any](batchSize int) (*Processor[T], error) {
	if batchSize < MinBatchSize || batchSize > MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}

	return &Processor[T]{
		batchSize: batchSize,
	}, nil
}

// WithPacer sets the pacer waited on between batches.
func (p *Processor[T]) WithPacer(pacer pace.Pacer) *Processor[T] {
	p.pacer = pacer
	return p
}

// WithProgressCallback sets a progress callback for the processor.
func (p *Processor[T]) WithProgressCallback(callback ProgressCallback) *Processor[T] {
	p.onProgress = callback
	return p
}

// Process processes items in batches using the provided callback.
//
// Batch failures are collected and returned together once every batch has
// run. A callback returning ErrStop, a done context, or a pacer failure ends
// processing early; the returned error then also matches ErrStop or the
// context error. Empty input is not an error.
func (p *Processor[T]) Process(ctx context.Context, items []T, callback BatchCallback[T]) error {
	if callback == nil {
		return ErrNilCallback
	}

	var result *multierror.Error
	bounds := p.CalculateBatches(len(items))

	for batchIndex, b := range bounds {
		if err := ctx.Err(); err != nil {
			return multierror.Append(result, err).ErrorOrNil()
		}

		batch := items[b[0]:b[1]]

		if err := callback(ctx, batch, batchIndex); err != nil {
			if errors.Is(err, ErrStop) {
				return multierror.Append(result, err).ErrorOrNil()
			}
			result = multierror.Append(result, fmt.Errorf("batch %d failed: %w", batchIndex, err))
		}

		if p.onProgress != nil {
			p.onProgress(batchIndex+1, len(bounds))
		}

		if batchIndex < len(bounds)-1 && p.pacer != nil {
			if err := p.pacer.Wait(ctx); err != nil {
				return multierror.Append(result, err).ErrorOrNil()
			}
		}
	}

	return result.ErrorOrNil()
}

// CalculateBatches returns the batch boundaries for the given items.
// Returns a slice of [start, end) index pairs.
func (p *Processor[T]) CalculateBatches(totalItems int) [][2]int {
	totalBatches := p.calculateTotalBatches(totalItems)
	batches := make([][2]int, totalBatches)

	for i := range totalBatches {
		start := i * p.batchSize
		end := start + p.batchSize
		if end > totalItems {
			end = totalItems
		}
		batches[i] = [2]int{start, end}
	}

	return batches
}

// calculateTotalBatches calculates the number of batches needed for the given item count.
func (p *Processor[T]) calculateTotalBatches(totalItems int) int {
	batches := totalItems / p.batchSize
	if totalItems%p.batchSize > 0 {
		batches++
	}
	return batches
}
