package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rshade/finwatch/internal/engine/batch"
	"github.com/rshade/finwatch/internal/engine/cache"
	"github.com/rshade/finwatch/internal/engine/pace"
	"github.com/rshade/finwatch/internal/inflight"
	"github.com/rshade/finwatch/internal/logging"
	"github.com/rshade/finwatch/internal/record"
	"github.com/rshade/finwatch/internal/source"
)

// State is the coordinator state.
type State int

// Coordinator states.
const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateRefreshing
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateRefreshing:
		return "refreshing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Engine coordinates the full loader and the price refresher for the current
// tracked set. Create one with New and release it with Close.
type Engine struct {
	ctx       context.Context
	opts      Options
	src       source.DataSource
	cache     *cache.Store
	guard     *LoadGuard
	loader    *FullLoader
	refresher *PriceRefresher
	observers []func(Event)
	reloads   inflight.Set[record.Key]
	focus     atomic.Bool

	mu      sync.Mutex
	state   State
	tracked []record.Key
	epoch   *Epoch
	nextID  uint64
	closed  bool

	wg sync.WaitGroup
}

// New creates an idle engine. ctx carries the logger and bounds the engine's
// lifetime: cancelling it stops all loops like Close does, minus the wait.
func New(ctx context.Context, src source.DataSource, opts ...Option) (*Engine, error) {
	if src == nil {
		return nil, errors.New("data source is required")
	}

	e := &Engine{
		opts:  DefaultOptions(),
		src:   src,
		guard: NewLoadGuard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.opts.Validate(); err != nil {
		return nil, err
	}
	if e.cache == nil {
		e.cache = cache.NewStore()
	}

	loadPacer, err := pace.NewFactory(e.opts.PacingPolicy, e.opts.InterItemDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	refreshPacer, err := pace.NewFactory(e.opts.PacingPolicy, e.opts.RefreshBatchDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	l := logging.ComponentLogger(*logging.FromContext(ctx), "engine")
	e.ctx = l.WithContext(ctx)
	e.loader = NewFullLoader(src, e.cache, e.guard, loadPacer, e.opts.FullCacheTTL, e.emit)
	e.refresher = NewPriceRefresher(src, e.cache, e.guard, refreshPacer, e.opts.RefreshBatchSize, e.focus.Load, e.emit)

	return e, nil
}

// SetTrackedSet replaces the tracked set. Repeated keys are dropped, keeping
// the first position. A sequence equal to the current one is a no-op and
// returns false. Otherwise the current epoch is invalidated and a new one
// starts loading.
func (e *Engine) SetTrackedSet(keys []record.Key) bool {
	keys = record.UniqueKeys(keys)

	e.mu.Lock()
	if e.closed || (e.epoch != nil && record.SameKeys(e.tracked, keys)) {
		e.mu.Unlock()
		return false
	}

	if e.epoch != nil {
		e.epoch.invalidate()
	}
	e.tracked = keys
	ep, run := e.startEpochLocked()
	e.mu.Unlock()

	logging.FromContext(ep.Context()).Info().
		Ctx(ep.Context()).
		Str("operation", "set_tracked_set").
		Int("tracked", len(keys)).
		Msg("tracked set changed")
	e.announce(ep, record.CloneKeys(keys))
	run()
	return true
}

// ForceRefresh evicts the cached records of the tracked set and reloads them
// under a new epoch.
func (e *Engine) ForceRefresh() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}

	if e.epoch != nil {
		e.epoch.invalidate()
	}
	evicted := e.cache.Evict(e.tracked)
	keys := record.CloneKeys(e.tracked)
	ep, run := e.startEpochLocked()
	e.mu.Unlock()

	logging.FromContext(ep.Context()).Info().
		Ctx(ep.Context()).
		Str("operation", "force_refresh").
		Int("evicted", evicted).
		Msg("forced refresh")
	e.announce(ep, keys)
	run()
	return nil
}

// announce emits the start events of ep. It runs before ep's loop starts so
// observers see them ahead of any progress of that epoch.
func (e *Engine) announce(ep *Epoch, keys []record.Key) {
	now := time.Now()
	e.emit(Event{Kind: EventEpochStarted, Epoch: ep.ID(), Keys: keys, At: now})
	e.emit(Event{Kind: EventStateChanged, Epoch: ep.ID(), State: StateLoading, At: now})
}

// NotifyFocusExclusive suppresses price refreshes while active is true.
func (e *Engine) NotifyFocusExclusive(active bool) {
	if e.focus.Swap(active) == active {
		return
	}
	logging.FromContext(e.ctx).Debug().
		Ctx(e.ctx).
		Str("operation", "focus_exclusive").
		Bool("active", active).
		Msg("focus changed")
}

// FocusExclusive reports whether refreshes are currently suppressed by focus.
func (e *Engine) FocusExclusive() bool {
	return e.focus.Load()
}

// CurrentSnapshot returns the loaded records of the tracked set in tracked order.
func (e *Engine) CurrentSnapshot() []record.Record {
	return e.cache.Snapshot(e.TrackedSet())
}

// CurrentProgress returns the load progress of the current epoch.
func (e *Engine) CurrentProgress() batch.LoadProgress {
	e.mu.Lock()
	ep, total := e.epoch, len(e.tracked)
	e.mu.Unlock()

	if ep == nil {
		return batch.LoadProgress{Total: total}
	}
	return ep.Progress()
}

// Lookup returns the cache entry for key, with its fetch timestamps.
func (e *Engine) Lookup(key record.Key) (cache.CacheEntry, bool) {
	return e.cache.Entry(key)
}

// State returns the coordinator state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Epoch returns the current epoch number, 0 before the first tracked set.
func (e *Engine) Epoch() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch == nil {
		return 0
	}
	return e.epoch.ID()
}

// TrackedSet returns a copy of the tracked set.
func (e *Engine) TrackedSet() []record.Key {
	e.mu.Lock()
	defer e.mu.Unlock()
	return record.CloneKeys(e.tracked)
}

// ReloadKey re-fetches the full record of one tracked key. It counts as a
// full load: it fails with ErrLoadInProgress while another load holds the
// guard, and with ErrAlreadyInFlight while a reload of the same key runs.
func (e *Engine) ReloadKey(ctx context.Context, key record.Key) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	ep := e.epoch
	tracked := slices.Contains(e.tracked, key)
	e.mu.Unlock()

	if ep == nil || !tracked {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	return e.reloads.Do(key, func() error {
		if !e.guard.TryAcquire() {
			return ErrLoadInProgress
		}
		defer e.guard.Release()

		rec, err := e.src.FetchFull(ctx, key)
		if err != nil {
			logging.FromContext(ep.Context()).Warn().
				Ctx(ctx).
				Str("operation", "reload_key").
				Str("key", key.String()).
				Str("error_class", source.Classify(err)).
				Err(err).
				Msg("reload failed")
			return fmt.Errorf("reload %s: %w", key, err)
		}

		if !ep.Commit(func() { e.cache.Set(key, rec) }) {
			return ErrSuperseded
		}
		e.emit(Event{
			Kind:   EventKeyLoaded,
			Epoch:  ep.ID(),
			Key:    key,
			Quotes: map[record.Key]record.Quote{key: rec.Quote},
			At:     time.Now(),
		})
		return nil
	})
}

// Close stops all loops and waits for them to exit. Further calls are no-ops.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.state = StateClosed
	if e.epoch != nil {
		e.epoch.invalidate()
	}
	e.mu.Unlock()

	e.wg.Wait()
	logging.FromContext(e.ctx).Debug().Ctx(e.ctx).Str("operation", "close").Msg("engine closed")
	return nil
}

// startEpochLocked installs a new epoch and returns it with the function that
// launches its loop. The caller must call run exactly once, after releasing mu.
func (e *Engine) startEpochLocked() (ep *Epoch, run func()) {
	e.nextID++
	ep = newEpoch(e.ctx, e.nextID, len(e.tracked))
	e.epoch = ep
	e.state = StateLoading

	keys := record.CloneKeys(e.tracked)
	e.wg.Add(1)
	return ep, func() { go e.runEpoch(ep, keys) }
}

// runEpoch loads the tracked set and then refreshes prices on a ticker until
// the epoch is invalidated.
func (e *Engine) runEpoch(ep *Epoch, keys []record.Key) {
	defer e.wg.Done()
	log := logging.FromContext(ep.Context())

	for {
		_, err := e.loader.Load(ep, keys)
		if !errors.Is(err, ErrLoadInProgress) {
			if err != nil {
				log.Error().Ctx(ep.Context()).Str("operation", "full_load").Err(err).Msg("full load failed")
			}
			break
		}
		// A superseded cycle still holds the guard; retry once it lets go.
		select {
		case <-e.guard.Idle():
		case <-ep.Done():
			return
		}
	}

	if !e.transition(ep, StateReady) {
		return
	}
	e.emit(Event{Kind: EventLoadComplete, Epoch: ep.ID(), Progress: ep.Progress(), At: time.Now()})

	ticker := time.NewTicker(e.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ep.Done():
			return
		case <-ticker.C:
			e.refreshCycle(ep, keys)
		}
	}
}

func (e *Engine) refreshCycle(ep *Epoch, keys []record.Key) {
	if reason := e.refresher.Check(ep, keys); reason != SkipNone {
		logging.FromContext(ep.Context()).Debug().
			Ctx(ep.Context()).
			Str("operation", "price_refresh").
			Str("reason", string(reason)).
			Msg("refresh tick suppressed")
		return
	}

	if !e.transition(ep, StateRefreshing) {
		return
	}
	_, err := e.refresher.Refresh(ep, keys)
	if err != nil {
		logging.FromContext(ep.Context()).Warn().
			Ctx(ep.Context()).
			Str("operation", "price_refresh").
			Err(err).
			Msg("refresh cycle had failed batches")
	}
	e.transition(ep, StateReady)
}

// transition sets the state if ep is still the current epoch.
func (e *Engine) transition(ep *Epoch, s State) bool {
	e.mu.Lock()
	if e.closed || e.epoch != ep || !ep.Alive() {
		e.mu.Unlock()
		return false
	}
	changed := e.state != s
	e.state = s
	e.mu.Unlock()

	if changed {
		e.emit(Event{Kind: EventStateChanged, Epoch: ep.ID(), State: s, At: time.Now()})
	}
	return true
}

func (e *Engine) emit(ev Event) {
	for _, fn := range e.observers {
		fn(ev)
	}
}
