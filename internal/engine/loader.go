package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rshade/finwatch/internal/engine/batch"
	"github.com/rshade/finwatch/internal/engine/cache"
	"github.com/rshade/finwatch/internal/engine/pace"
	"github.com/rshade/finwatch/internal/logging"
	"github.com/rshade/finwatch/internal/record"
	"github.com/rshade/finwatch/internal/source"
)

// LoadResult summarizes one full load cycle.
type LoadResult struct {
	Missing int
	Loaded  []record.Key
	Failed  []record.Key
	// Aborted is set when the epoch was invalidated before every missing key was tried.
	Aborted bool
}

// FullLoader fetches complete records for the tracked keys missing from the
// cache, strictly one key at a time.
type FullLoader struct {
	src   source.DataSource
	cache *cache.Store
	guard *LoadGuard
	pacer pace.Factory
	ttl   time.Duration
	emit  func(Event)
}

// NewFullLoader creates a loader. emit may be nil.
func NewFullLoader(
	src source.DataSource,
	store *cache.Store,
	guard *LoadGuard,
	pacer pace.Factory,
	ttl time.Duration,
	emit func(Event),
) *FullLoader {
	if emit == nil {
		emit = func(Event) {}
	}
	return &FullLoader{src: src, cache: store, guard: guard, pacer: pacer, ttl: ttl, emit: emit}
}

// Load makes sure every key in keys has a record in the cache for epoch ep.
//
// Keys already cached and younger than the TTL are reused. If nothing is
// missing the epoch is marked fully loaded without taking the guard.
// Otherwise Load takes the guard or returns ErrLoadInProgress immediately.
// Per-key failures are logged and skipped; invalidation of ep stops the loop
// and is reported through LoadResult.Aborted, not as an error. The epoch is
// marked fully loaded whenever a cycle ends.
func (l *FullLoader) Load(ep *Epoch, keys []record.Key) (LoadResult, error) {
	ctx := ep.Context()
	log := logging.FromContext(ctx)

	missing := l.cache.Missing(keys, l.ttl)
	result := LoadResult{Missing: len(missing)}

	if len(missing) == 0 {
		ep.progress.SetLoaded(len(keys))
		ep.markLoaded()
		l.emit(Event{Kind: EventProgress, Epoch: ep.ID(), Progress: ep.Progress(), At: time.Now()})
		return result, nil
	}

	if !l.guard.TryAcquire() {
		log.Debug().
			Ctx(ctx).
			Str("component", "engine").
			Str("operation", "full_load").
			Int("missing", len(missing)).
			Msg("full load already running, skipping")
		return result, ErrLoadInProgress
	}
	defer func() {
		l.guard.Release()
		ep.markLoaded()
	}()

	cycleID := logging.NewID()
	start := time.Now()
	log.Info().
		Ctx(ctx).
		Str("component", "engine").
		Str("operation", "full_load").
		Str("cycle_id", cycleID).
		Int("missing", len(missing)).
		Int("tracked", len(keys)).
		Msg("full load started")

	ep.progress.SetLoaded(l.cache.CountPresent(keys))

	proc, err := batch.NewProcessor[record.Key](1)
	if err != nil {
		return result, err
	}
	proc.WithPacer(l.pacer())

	err = proc.Process(ctx, missing, func(ctx context.Context, unit []record.Key, _ int) error {
		key := unit[0]
		if !ep.Alive() {
			return batch.ErrStop
		}

		ep.progress.SetCurrent(key)
		l.emit(Event{Kind: EventProgress, Epoch: ep.ID(), Key: key, Progress: ep.Progress(), At: time.Now()})

		rec, err := l.src.FetchFull(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return batch.ErrStop
			}
			result.Failed = append(result.Failed, key)
			log.Warn().
				Ctx(ctx).
				Str("component", "engine").
				Str("operation", "full_load").
				Str("cycle_id", cycleID).
				Str("key", key.String()).
				Str("error_class", source.Classify(err)).
				Err(err).
				Msg("full fetch failed, key stays unloaded until next cycle")
			ep.progress.SetLoaded(l.cache.CountPresent(keys))
			return nil
		}

		if !ep.Commit(func() { l.cache.Set(key, rec) }) {
			return batch.ErrStop
		}
		result.Loaded = append(result.Loaded, key)
		ep.progress.SetLoaded(l.cache.CountPresent(keys))

		now := time.Now()
		l.emit(Event{
			Kind:   EventKeyLoaded,
			Epoch:  ep.ID(),
			Key:    key,
			Quotes: map[record.Key]record.Quote{key: rec.Quote},
			At:     now,
		})
		l.emit(Event{Kind: EventProgress, Epoch: ep.ID(), Progress: ep.Progress(), At: now})
		return nil
	})

	if err != nil {
		if !errors.Is(err, batch.ErrStop) && !errors.Is(err, context.Canceled) {
			log.Warn().
				Ctx(ctx).
				Str("component", "engine").
				Str("operation", "full_load").
				Str("cycle_id", cycleID).
				Err(err).
				Msg("full load ended early")
		}
		result.Aborted = true
	}

	log.Info().
		Ctx(ctx).
		Str("component", "engine").
		Str("operation", "full_load").
		Str("cycle_id", cycleID).
		Int("loaded", len(result.Loaded)).
		Int("failed", len(result.Failed)).
		Bool("aborted", result.Aborted).
		Dur("duration", time.Since(start)).
		Msg("full load finished")

	return result, nil
}
