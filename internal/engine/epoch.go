package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rshade/finwatch/internal/engine/batch"
	"github.com/rshade/finwatch/internal/logging"
)

// Epoch is the liveness token for one tracked set. Loops started for an epoch
// check it before every unit of work and write to the cache only through
// Commit. Once invalidated, an epoch never becomes alive again.
type Epoch struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc

	// mu serializes commits (read side) against invalidation (write side).
	mu    sync.RWMutex
	alive bool

	loaded   atomic.Bool
	progress *batch.Progress
}

func newEpoch(parent context.Context, id uint64, total int) *Epoch {
	ctx, cancel := context.WithCancel(parent)
	l := logging.FromContext(parent).With().Uint64("epoch", id).Logger()
	ctx = l.WithContext(ctx)

	return &Epoch{
		id:       id,
		ctx:      ctx,
		cancel:   cancel,
		alive:    true,
		progress: batch.NewProgress(total),
	}
}

// ID returns the epoch number. IDs increase monotonically per engine.
func (e *Epoch) ID() uint64 {
	return e.id
}

// Context is cancelled when the epoch is invalidated.
func (e *Epoch) Context() context.Context {
	return e.ctx
}

// Done is closed when the epoch is invalidated.
func (e *Epoch) Done() <-chan struct{} {
	return e.ctx.Done()
}

// Alive reports whether the epoch is still current.
func (e *Epoch) Alive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.alive
}

// Commit runs fn if the epoch is alive and reports whether it ran.
// Invalidation waits for running commits, so after invalidate returns no
// commit of this epoch can start.
func (e *Epoch) Commit(fn func()) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.alive {
		return false
	}
	fn()
	return true
}

// FullyLoaded reports whether a full load cycle finished for this epoch.
func (e *Epoch) FullyLoaded() bool {
	return e.loaded.Load()
}

// Progress returns the current load progress.
func (e *Epoch) Progress() batch.LoadProgress {
	return e.progress.Snapshot()
}

func (e *Epoch) markLoaded() {
	e.loaded.Store(true)
}

func (e *Epoch) invalidate() {
	e.mu.Lock()
	e.alive = false
	e.mu.Unlock()
	e.cancel()
}
