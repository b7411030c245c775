package engine

import (
	"time"

	"github.com/rshade/finwatch/internal/engine/batch"
	"github.com/rshade/finwatch/internal/record"
)

// EventKind identifies an engine event.
type EventKind int

// Event kinds.
const (
	// EventEpochStarted is emitted when a new tracked set or a forced refresh starts an epoch.
	EventEpochStarted EventKind = iota
	// EventKeyLoaded is emitted after a full record was written to the cache.
	EventKeyLoaded
	// EventProgress carries updated load progress.
	EventProgress
	// EventLoadComplete is emitted when the full load of the current epoch finished.
	EventLoadComplete
	// EventPricesRefreshed is emitted after a refresh cycle patched at least one key.
	EventPricesRefreshed
	// EventStateChanged is emitted on every coordinator state transition.
	EventStateChanged
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventEpochStarted:
		return "epoch_started"
	case EventKeyLoaded:
		return "key_loaded"
	case EventProgress:
		return "progress"
	case EventLoadComplete:
		return "load_complete"
	case EventPricesRefreshed:
		return "prices_refreshed"
	case EventStateChanged:
		return "state_changed"
	default:
		return "unknown"
	}
}

// Event is delivered to observers registered with WithObserver.
type Event struct {
	Kind     EventKind
	Epoch    uint64
	Key      record.Key
	Keys     []record.Key
	Progress batch.LoadProgress
	State    State
	// Quotes holds the quotes committed with a key-loaded or
	// prices-refreshed event, as of that commit.
	Quotes map[record.Key]record.Quote
	At     time.Time
}
