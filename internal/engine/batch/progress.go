package batch

import (
	"sync"
	"time"

	"github.com/rshade/finwatch/internal/record"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// LoadProgress is an immutable snapshot of full-load progress.
type LoadProgress struct {
	// Loaded is the number of tracked keys that have a cached record.
	Loaded int

	// Total is the size of the tracked set.
	Total int

	// Current is the key being fetched right now, empty when idle.
	Current record.Key

	// StartTime is when the tracker was created or last reset.
	StartTime time.Time

	// LastUpdateTime is when progress last changed.
	LastUpdateTime time.Time
}

// PercentComplete returns the completion percentage (0-100).
// An empty tracked set counts as complete.
func (lp LoadProgress) PercentComplete() float64 {
	if lp.Total == 0 {
		return percentMultiplier
	}
	return (float64(lp.Loaded) / float64(lp.Total)) * percentMultiplier
}

// IsComplete returns true if every tracked key has a record.
func (lp LoadProgress) IsComplete() bool {
	return lp.Loaded >= lp.Total
}

// Progress tracks full-load progress for one epoch.
// It provides thread-safe access to progress metrics for UI updates.
type Progress struct {
	loaded         int
	total          int
	current        record.Key
	startTime      time.Time
	lastUpdateTime time.Time

	// mu protects concurrent access to progress fields.
	mu sync.RWMutex
}

// NewProgress creates a new progress tracker for a tracked set of total keys.
func NewProgress(total int) *Progress {
	now := time.Now()
	return &Progress{
		total:          total,
		startTime:      now,
		lastUpdateTime: now,
	}
}

// SetLoaded records the recomputed number of loaded keys and clears Current.
func (p *Progress) SetLoaded(loaded int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.loaded = loaded
	p.current = ""
	p.lastUpdateTime = time.Now()
}

// SetCurrent records the key currently being fetched.
func (p *Progress) SetCurrent(key record.Key) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = key
	p.lastUpdateTime = time.Now()
}

// Snapshot returns a thread-safe copy of the current progress state.
func (p *Progress) Snapshot() LoadProgress {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return LoadProgress{
		Loaded:         p.loaded,
		Total:          p.total,
		Current:        p.current,
		StartTime:      p.startTime,
		LastUpdateTime: p.lastUpdateTime,
	}
}
