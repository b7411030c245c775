package tui

import (
	"context"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/finwatch/internal/engine"
)

// DefaultBridgeBuffer is the event buffer used by the watch command.
const DefaultBridgeBuffer = 256

// EngineEventMsg carries an engine event into the Bubble Tea loop.
type EngineEventMsg struct {
	Event engine.Event
}

// EventBridge forwards engine events to a Bubble Tea program. Observe never
// blocks; when the buffer is full the event is dropped. The model re-reads
// the engine on every event, so a later event covers a dropped one.
type EventBridge struct {
	events  chan engine.Event
	dropped atomic.Int64
}

// NewEventBridge returns a bridge with the given buffer size.
func NewEventBridge(buffer int) *EventBridge {
	if buffer < 1 {
		buffer = 1
	}
	return &EventBridge{events: make(chan engine.Event, buffer)}
}

// Observe is registered with engine.WithObserver.
func (b *EventBridge) Observe(ev engine.Event) {
	select {
	case b.events <- ev:
	default:
		b.dropped.Add(1)
	}
}

// Run delivers buffered events to send until ctx is done. Pass
// (*tea.Program).Send as send.
func (b *EventBridge) Run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.events:
			send(EngineEventMsg{Event: ev})
		}
	}
}

// Dropped returns how many events were discarded.
func (b *EventBridge) Dropped() int64 {
	return b.dropped.Load()
}
