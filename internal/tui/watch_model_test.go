package tui

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/finwatch/internal/engine"
	"github.com/rshade/finwatch/internal/engine/batch"
	"github.com/rshade/finwatch/internal/engine/cache"
	"github.com/rshade/finwatch/internal/record"
	"github.com/rshade/finwatch/internal/watchlist"
)

// fakeEngine records what the model asks of the engine.
type fakeEngine struct {
	mu        sync.Mutex
	tracked   [][]record.Key
	focus     []bool
	forced    int
	reloads   []record.Key
	reloadErr error
	records   []record.Record
	entries   map[record.Key]cache.CacheEntry
	progress  batch.LoadProgress
	state     engine.State
}

func (f *fakeEngine) SetTrackedSet(keys []record.Key) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked = append(f.tracked, keys)
	f.state = engine.StateLoading
	f.progress = batch.LoadProgress{Total: len(keys)}
	return true
}

func (f *fakeEngine) ForceRefresh() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced++
	return nil
}

func (f *fakeEngine) NotifyFocusExclusive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focus = append(f.focus, active)
}

func (f *fakeEngine) CurrentSnapshot() []record.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]record.Record(nil), f.records...)
}

func (f *fakeEngine) CurrentProgress() batch.LoadProgress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress
}

func (f *fakeEngine) State() engine.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeEngine) ReloadKey(_ context.Context, key record.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads = append(f.reloads, key)
	return f.reloadErr
}

func (f *fakeEngine) Lookup(key record.Key) (cache.CacheEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	return e, ok
}

func (f *fakeEngine) lastTracked() []record.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tracked) == 0 {
		return nil
	}
	return f.tracked[len(f.tracked)-1]
}

func (f *fakeEngine) finish(records ...record.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
	f.progress.Loaded = len(records)
	f.progress.Current = ""
	f.state = engine.StateReady
}

func sampleRecord(key record.Key, price string) record.Record {
	return record.Record{
		Key:     key,
		Profile: record.Profile{Name: string(key) + " Inc.", Exchange: "NASDAQ", Currency: "USD"},
		Quote: record.Quote{
			Price:         decimal.RequireFromString(price),
			Change:        decimal.RequireFromString("1.50"),
			ChangePercent: decimal.RequireFromString("0.75"),
			Volume:        1234567,
		},
		Fundamentals: record.Fundamentals{MarketCap: decimal.New(3, 12)},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestWatchlist(t *testing.T) *watchlist.Watchlist {
	t.Helper()
	wl := watchlist.New(filepath.Join(t.TempDir(), "watchlist.yaml"))
	wl.Add("tech", "AAPL", "MSFT")
	return wl
}

func newTestModel(t *testing.T, view string) (WatchModel, *fakeEngine, *watchlist.Watchlist) {
	t.Helper()
	eng := &fakeEngine{}
	wl := newTestWatchlist(t)
	m, err := NewWatchModel(context.Background(), eng, wl, view)
	require.NoError(t, err)
	return m, eng, wl
}

func update(t *testing.T, m WatchModel, msg tea.Msg) (WatchModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	wm, ok := next.(WatchModel)
	require.True(t, ok)
	return wm, cmd
}

func TestNewWatchModel(t *testing.T) {
	m, eng, _ := newTestModel(t, "tech")

	assert.Equal(t, ViewStateList, m.State())
	assert.Equal(t, []record.Key{"AAPL", "MSFT"}, eng.lastTracked())
	assert.Equal(t, []string{"default", "tech", "favorites"}, m.views)
	assert.NotNil(t, m.Init(), "spinner starts while loading")

	_, err := NewWatchModel(context.Background(), eng, newTestWatchlist(t), "nope")
	require.ErrorIs(t, err, watchlist.ErrUnknownView)
}

func TestWatchModel_PlaceholderRows(t *testing.T) {
	m, eng, _ := newTestModel(t, "tech")

	eng.mu.Lock()
	eng.records = []record.Record{sampleRecord("AAPL", "190.10")}
	eng.progress = batch.LoadProgress{Loaded: 1, Total: 2, Current: "MSFT"}
	eng.mu.Unlock()

	m, _ = update(t, m, EngineEventMsg{Event: engine.Event{Kind: engine.EventKeyLoaded, Key: "AAPL"}})

	rows := m.table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0][0])
	assert.Equal(t, "190.10", rows[0][2])
	assert.Equal(t, "+1.50", rows[0][3])
	assert.Equal(t, "1,234,567", rows[0][5])
	assert.Equal(t, "MSFT", rows[1][0])
	assert.Equal(t, "fetching...", rows[1][1])

	assert.Contains(t, m.View(), "Loading: 1/2 (50%) - MSFT")

	eng.finish(sampleRecord("AAPL", "190.10"))
	m, cmd := update(t, m, EngineEventMsg{Event: engine.Event{Kind: engine.EventLoadComplete}})
	assert.Nil(t, cmd, "spinner stops once loading ends")
	assert.Equal(t, "unavailable", m.table.Rows()[1][1])
	assert.NotContains(t, m.View(), "Loading:")
}

func TestWatchModel_DetailFocus(t *testing.T) {
	m, eng, _ := newTestModel(t, "tech")
	eng.finish(sampleRecord("AAPL", "190.10"), sampleRecord("MSFT", "410.00"))
	m, _ = update(t, m, EngineEventMsg{})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ViewStateDetail, m.State())
	assert.Equal(t, record.Key("AAPL"), m.Selected())
	assert.Contains(t, m.View(), "AAPL Inc.")
	assert.Contains(t, m.View(), "3.00T")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEscape})
	assert.Equal(t, ViewStateList, m.State())
	assert.Equal(t, []bool{true, false}, eng.focus)
}

func TestWatchModel_DetailShowsEntryAge(t *testing.T) {
	m, eng, _ := newTestModel(t, "tech")
	aapl := sampleRecord("AAPL", "190.10")
	eng.finish(aapl)

	now := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	eng.mu.Lock()
	eng.entries = map[record.Key]cache.CacheEntry{
		"AAPL": {Record: aapl, FetchedAt: now.Add(-30 * time.Second), LoadedAt: now.Add(-2*time.Hour - 30*time.Minute)},
	}
	eng.mu.Unlock()

	m, _ = update(t, m, EngineEventMsg{})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	view := m.View()
	assert.Contains(t, view, "Quote updated")
	assert.Contains(t, view, "30s ago")
	assert.Contains(t, view, "2h30m ago")
}

func TestWatchModel_Reload(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
	}{
		{"Success", nil, "AAPL reloaded"},
		{"LoadInProgress", engine.ErrLoadInProgress, "full load in progress"},
		{"InFlight", engine.ErrAlreadyInFlight, "already reloading"},
		{"Failure", errors.New("boom"), "reload AAPL failed: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, eng, _ := newTestModel(t, "tech")
			eng.reloadErr = tt.err

			m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
			m, cmd := update(t, m, runes("r"))
			require.NotNil(t, cmd)
			assert.Equal(t, "Reloading AAPL", m.Status())

			m, _ = update(t, m, cmd())
			assert.Contains(t, m.Status(), tt.status)
			assert.Equal(t, []record.Key{"AAPL"}, eng.reloads)
		})
	}
}

func TestWatchModel_ForceRefresh(t *testing.T) {
	m, eng, _ := newTestModel(t, "tech")

	m, _ = update(t, m, runes("R"))
	assert.Equal(t, 1, eng.forced)
	assert.Equal(t, "Reloading all records", m.Status())
}

func TestWatchModel_SwitchView(t *testing.T) {
	m, eng, _ := newTestModel(t, "default")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "tech", m.currentView())
	assert.Equal(t, []record.Key{"AAPL", "MSFT"}, eng.lastTracked())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, watchlist.FavoritesView, m.currentView())
	assert.Empty(t, eng.lastTracked())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, "tech", m.currentView())
}

func TestWatchModel_ToggleFavorite(t *testing.T) {
	m, _, wl := newTestModel(t, "tech")

	m, cmd := update(t, m, runes("f"))
	require.NotNil(t, cmd)

	m, second := update(t, m, runes("f"))
	assert.Nil(t, second, "second toggle of the same key is rejected while saving")
	assert.Contains(t, m.Status(), "already in progress")

	m, _ = update(t, m, cmd())
	assert.True(t, wl.IsFavorite("AAPL"))
	assert.Equal(t, "AAPL added to favorites", m.Status())
	assert.Equal(t, "★ AAPL", m.table.Rows()[0][0])

	reloaded, err := watchlist.Load(wl.Path())
	require.NoError(t, err)
	assert.True(t, reloaded.IsFavorite("AAPL"))

	_, cmd = update(t, m, runes("f"))
	require.NotNil(t, cmd, "toggle is accepted again after the save finished")
}

func TestWatchModel_FavoriteInFavoritesViewRetracks(t *testing.T) {
	eng := &fakeEngine{}
	wl := newTestWatchlist(t)
	wl.ToggleFavorite("AAPL")
	wl.ToggleFavorite("MSFT")

	m, err := NewWatchModel(context.Background(), eng, wl, watchlist.FavoritesView)
	require.NoError(t, err)
	assert.Equal(t, []record.Key{"AAPL", "MSFT"}, eng.lastTracked())

	m, cmd := update(t, m, runes("f"))
	m, _ = update(t, m, cmd())
	assert.Equal(t, []record.Key{"MSFT"}, eng.lastTracked())
	assert.Len(t, m.table.Rows(), 1)
}

func TestWatchModel_Quit(t *testing.T) {
	m, _, _ := newTestModel(t, "tech")

	m, cmd := update(t, m, runes("q"))
	assert.Equal(t, ViewStateQuitting, m.State())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestProgressText(t *testing.T) {
	tests := []struct {
		name string
		p    batch.LoadProgress
		want string
	}{
		{"Start", batch.LoadProgress{Total: 8}, "Loading: 0/8 (0%)"},
		{"Current", batch.LoadProgress{Loaded: 3, Total: 8, Current: "MSFT"}, "Loading: 3/8 (37%) - MSFT"},
		{"Empty", batch.LoadProgress{}, "Loading: 0/0 (100%)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProgressText(tt.p))
		})
	}
}
