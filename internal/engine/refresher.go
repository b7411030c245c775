package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/rshade/finwatch/internal/engine/batch"
	"github.com/rshade/finwatch/internal/engine/cache"
	"github.com/rshade/finwatch/internal/engine/pace"
	"github.com/rshade/finwatch/internal/logging"
	"github.com/rshade/finwatch/internal/record"
	"github.com/rshade/finwatch/internal/source"
)

// SkipReason explains why a refresh cycle did not run or stopped early.
type SkipReason string

// Skip reasons.
const (
	SkipNone           SkipReason = ""
	SkipLoadInProgress SkipReason = "load_in_progress"
	SkipNotLoaded      SkipReason = "not_fully_loaded"
	SkipFocus          SkipReason = "focus_exclusive"
	SkipNothingLoaded  SkipReason = "nothing_loaded"
	SkipEpochInvalid   SkipReason = "epoch_invalid"
)

// RefreshResult summarizes one price refresh cycle.
type RefreshResult struct {
	// Skipped is set when the cycle did not fetch anything.
	Skipped SkipReason
	// Stopped is set when the cycle was abandoned between batches.
	Stopped SkipReason

	Batches int
	Failed  int
	Patched []record.Key
}

// PriceRefresher patches the volatile fields of already-loaded keys using
// batched price fetches. It only observes the load guard, never takes it.
type PriceRefresher struct {
	src       source.DataSource
	cache     *cache.Store
	guard     *LoadGuard
	pacer     pace.Factory
	batchSize int
	focused   func() bool
	emit      func(Event)
}

// NewPriceRefresher creates a refresher. focused and emit may be nil.
func NewPriceRefresher(
	src source.DataSource,
	store *cache.Store,
	guard *LoadGuard,
	pacer pace.Factory,
	batchSize int,
	focused func() bool,
	emit func(Event),
) *PriceRefresher {
	if focused == nil {
		focused = func() bool { return false }
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &PriceRefresher{
		src:       src,
		cache:     store,
		guard:     guard,
		pacer:     pacer,
		batchSize: batchSize,
		focused:   focused,
		emit:      emit,
	}
}

// Check returns why a cycle for ep would be skipped, or SkipNone.
func (r *PriceRefresher) Check(ep *Epoch, keys []record.Key) SkipReason {
	switch {
	case !ep.Alive():
		return SkipEpochInvalid
	case r.guard.Held():
		return SkipLoadInProgress
	case !ep.FullyLoaded():
		return SkipNotLoaded
	case r.focused():
		return SkipFocus
	case r.cache.CountPresent(keys) == 0:
		return SkipNothingLoaded
	default:
		return SkipNone
	}
}

// Refresh runs one price refresh cycle over the loaded subset of keys.
//
// Batches run in order, one request per batch. Before each batch the load
// guard, the epoch and the focus flag are checked again and the rest of the
// cycle is abandoned if any of them blocks refreshing. A failed batch is
// logged and the cycle moves on; the returned error aggregates the batch
// failures and is meant for logging only.
func (r *PriceRefresher) Refresh(ep *Epoch, keys []record.Key) (RefreshResult, error) {
	ctx := ep.Context()
	log := logging.FromContext(ctx)

	var result RefreshResult
	quotes := make(map[record.Key]record.Quote)
	if reason := r.Check(ep, keys); reason != SkipNone {
		result.Skipped = reason
		log.Debug().
			Ctx(ctx).
			Str("component", "engine").
			Str("operation", "price_refresh").
			Str("reason", string(reason)).
			Msg("price refresh skipped")
		return result, nil
	}

	proc, err := batch.NewProcessor[record.Key](r.batchSize)
	if err != nil {
		return result, err
	}
	loaded := r.cache.Present(keys)
	cycleID := logging.NewID()
	start := time.Now()

	proc.WithPacer(r.pacer()).WithProgressCallback(func(done, total int) {
		log.Debug().
			Ctx(ctx).
			Str("component", "engine").
			Str("operation", "price_refresh").
			Str("cycle_id", cycleID).
			Int("batches_done", done).
			Int("batches_total", total).
			Msg("price batch done")
	})

	err = proc.Process(ctx, loaded, func(ctx context.Context, keys []record.Key, idx int) error {
		if reason := r.interrupt(ep); reason != SkipNone {
			result.Stopped = reason
			return batch.ErrStop
		}

		result.Batches++
		patches, err := r.src.FetchPrices(ctx, keys)
		if err != nil {
			if ctx.Err() != nil {
				result.Stopped = SkipEpochInvalid
				return batch.ErrStop
			}
			result.Failed++
			log.Warn().
				Ctx(ctx).
				Str("component", "engine").
				Str("operation", "price_refresh").
				Str("cycle_id", cycleID).
				Int("batch", idx).
				Strs("keys", record.Strings(keys)).
				Str("error_class", source.Classify(err)).
				Err(err).
				Msg("price batch failed, keys stay stale until next cycle")
			return fmt.Errorf("fetch prices: %w", err)
		}

		var patched []record.Key
		committed := ep.Commit(func() {
			for _, p := range patches {
				if !r.cache.PatchVolatile(p.Key, p.Quote) {
					continue
				}
				patched = append(patched, p.Key)
				if rec, ok := r.cache.Get(p.Key); ok {
					quotes[p.Key] = rec.Quote
				}
			}
		})
		if !committed {
			result.Stopped = SkipEpochInvalid
			return batch.ErrStop
		}
		result.Patched = append(result.Patched, patched...)
		return nil
	})

	failures := batchFailures(err)

	log.Debug().
		Ctx(ctx).
		Str("component", "engine").
		Str("operation", "price_refresh").
		Str("cycle_id", cycleID).
		Int("batches", result.Batches).
		Int("failed", result.Failed).
		Int("patched", len(result.Patched)).
		Str("stopped", string(result.Stopped)).
		Dur("duration", time.Since(start)).
		Msg("price refresh finished")

	if len(result.Patched) > 0 {
		r.emit(Event{
			Kind:   EventPricesRefreshed,
			Epoch:  ep.ID(),
			Keys:   result.Patched,
			Quotes: quotes,
			At:     time.Now(),
		})
	}

	return result, failures
}

func (r *PriceRefresher) interrupt(ep *Epoch) SkipReason {
	switch {
	case r.guard.Held():
		return SkipLoadInProgress
	case !ep.Alive():
		return SkipEpochInvalid
	case r.focused():
		return SkipFocus
	default:
		return SkipNone
	}
}

// batchFailures drops stop and cancellation entries from a batch.Process
// error, keeping only real batch failures.
func batchFailures(err error) error {
	if err == nil {
		return nil
	}

	var merr *multierror.Error
	if !errors.As(err, &merr) {
		if isStop(err) {
			return nil
		}
		return err
	}

	var out *multierror.Error
	for _, e := range merr.Errors {
		if !isStop(e) {
			out = multierror.Append(out, e)
		}
	}
	return out.ErrorOrNil()
}

func isStop(err error) bool {
	return errors.Is(err, batch.ErrStop) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
