package cli

import (
	"io"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/finwatch/internal/engine"
	"github.com/rshade/finwatch/internal/engine/cache"
	"github.com/rshade/finwatch/internal/record"
	"github.com/rshade/finwatch/internal/tui"
)

// recordLookup is the part of the engine the event printer reads from.
type recordLookup interface {
	Lookup(key record.Key) (cache.CacheEntry, bool)
}

// eventPrinter renders engine events as one line each.
type eventPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	p      *message.Printer
	lookup recordLookup
}

func newEventPrinter(w io.Writer, lookup recordLookup) *eventPrinter {
	return &eventPrinter{
		w:      w,
		p:      message.NewPrinter(language.English),
		lookup: lookup,
	}
}

func (e *eventPrinter) header(view string, keys int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = e.p.Fprintf(e.w, "watching %q (%d keys)\n", view, keys)
}

func (e *eventPrinter) handle(ev engine.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts := ev.At.Format(time.TimeOnly)
	switch ev.Kind {
	case engine.EventEpochStarted:
		_, _ = e.p.Fprintf(e.w, "%s epoch %d started, %d keys\n", ts, ev.Epoch, len(ev.Keys))
	case engine.EventKeyLoaded:
		e.quoteLine(ts, "loaded", ev.Key, true)
	case engine.EventLoadComplete:
		_, _ = e.p.Fprintf(e.w, "%s load complete: %d/%d records\n", ts, ev.Progress.Loaded, ev.Progress.Total)
	case engine.EventPricesRefreshed:
		for _, k := range ev.Keys {
			e.quoteLine(ts, "price", k, false)
		}
	case engine.EventProgress, engine.EventStateChanged:
		// Covered by the lines above.
	}
}

func (e *eventPrinter) quoteLine(ts, label string, key record.Key, withName bool) {
	entry, ok := e.lookup.Lookup(key)
	if !ok {
		return
	}
	rec := entry.Record
	q := rec.Quote

	name := ""
	if withName {
		name = "  " + rec.DisplayName()
	}
	_, _ = e.p.Fprintf(e.w, "%s %-6s %-6s %10s %9s (%s) vol %s%s\n",
		ts, label, key, tui.FormatPrice(q.Price), tui.FormatChange(q.Change),
		tui.FormatPercent(q.ChangePercent), tui.FormatVolume(q.Volume), name)
}
