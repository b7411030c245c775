package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/finwatch/internal/engine"
	"github.com/rshade/finwatch/internal/engine/batch"
	"github.com/rshade/finwatch/internal/engine/cache"
	"github.com/rshade/finwatch/internal/inflight"
	"github.com/rshade/finwatch/internal/record"
	"github.com/rshade/finwatch/internal/watchlist"
)

// Engine is the part of *engine.Engine the watch screen drives.
type Engine interface {
	SetTrackedSet(keys []record.Key) bool
	ForceRefresh() error
	NotifyFocusExclusive(active bool)
	CurrentSnapshot() []record.Record
	CurrentProgress() batch.LoadProgress
	State() engine.State
	ReloadKey(ctx context.Context, key record.Key) error
	Lookup(key record.Key) (cache.CacheEntry, bool)
}

// Watchlist is the part of *watchlist.Watchlist the watch screen edits.
type Watchlist interface {
	ViewNames() []string
	View(name string) ([]record.Key, error)
	IsFavorite(key record.Key) bool
	ToggleFavorite(key record.Key) bool
	Save() error
}

// reloadDoneMsg reports the end of a single-key reload.
type reloadDoneMsg struct {
	Key record.Key
	Err error
}

// favoriteDoneMsg reports a saved favorite toggle.
type favoriteDoneMsg struct {
	Key      record.Key
	Favorite bool
	Err      error
}

// WatchModel is the Bubble Tea model for the watch screen.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View interface methods.
type WatchModel struct {
	ctx context.Context
	eng Engine
	wl  Watchlist

	// toggles rejects a second favorite toggle of a key while the first saves.
	toggles *inflight.Set[record.Key]

	state   ViewState
	views   []string
	viewIdx int
	keys    []record.Key

	records     map[record.Key]record.Record
	progress    batch.LoadProgress
	engineState engine.State

	table    table.Model
	selected record.Key
	width    int
	height   int

	loadingState *LoadingState
	status       string

	now func() time.Time
}

// NewWatchModel builds the watch screen on view and makes the view's keys the
// engine's tracked set.
func NewWatchModel(ctx context.Context, eng Engine, wl Watchlist, view string) (WatchModel, error) {
	views := wl.ViewNames()
	idx := slices.Index(views, view)
	if idx < 0 {
		return WatchModel{}, fmt.Errorf("%w: %q", watchlist.ErrUnknownView, view)
	}

	m := WatchModel{
		ctx:          ctx,
		eng:          eng,
		wl:           wl,
		toggles:      &inflight.Set[record.Key]{},
		state:        ViewStateList,
		views:        views,
		width:        defaultWidth,
		height:       defaultHeight,
		loadingState: NewLoadingState(),
		now:          time.Now,
	}
	m.table = m.buildTable()

	if err := m.selectView(idx); err != nil {
		return WatchModel{}, err
	}
	return m, nil
}

// Init starts the spinner when the first load is still running.
func (m WatchModel) Init() tea.Cmd {
	return m.spin()
}

// Update handles messages and updates the model state (Bubble Tea interface).
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeTable()
		return m, nil
	case EngineEventMsg:
		return m, m.sync()
	case spinner.TickMsg:
		return m, m.loadingState.Update(msg)
	case reloadDoneMsg:
		return m.handleReloadDone(msg)
	case favoriteDoneMsg:
		return m.handleFavoriteDone(msg)
	case tea.KeyMsg:
		switch m.state {
		case ViewStateList:
			return m.handleListKeypress(msg)
		case ViewStateDetail:
			return m.handleDetailKeypress(msg)
		case ViewStateQuitting:
			if msg.String() == keyQuit || msg.String() == keyCtrlC {
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m WatchModel) handleListKeypress(keyMsg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch keyMsg.String() {
	case keyQuit, keyCtrlC:
		m.state = ViewStateQuitting
		return m, tea.Quit
	case keyEnter:
		key, ok := m.cursorKey()
		if !ok {
			return m, nil
		}
		m.selected = key
		m.state = ViewStateDetail
		m.status = ""
		m.eng.NotifyFocusExclusive(true)
		return m, nil
	case keyForce:
		if err := m.eng.ForceRefresh(); err != nil {
			m.status = fmt.Sprintf("refresh failed: %v", err)
			return m, nil
		}
		m.status = "Reloading all records"
		return m, m.sync()
	case keyTab:
		return m.switchView(1)
	case keyShiftTab:
		return m.switchView(-1)
	case keyFavorite:
		key, ok := m.cursorKey()
		if !ok {
			return m, nil
		}
		return m.toggleFavorite(key)
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(keyMsg)
		return m, cmd
	}
}

func (m WatchModel) handleDetailKeypress(keyMsg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch keyMsg.String() {
	case keyQuit, keyCtrlC:
		m.state = ViewStateQuitting
		return m, tea.Quit
	case keyEsc:
		m.state = ViewStateList
		m.eng.NotifyFocusExclusive(false)
		m.table.Focus()
		return m, nil
	case keyReload:
		m.status = fmt.Sprintf("Reloading %s", m.selected)
		return m, reloadCmd(m.ctx, m.eng, m.selected)
	case keyFavorite:
		return m.toggleFavorite(m.selected)
	}
	return m, nil
}

func (m WatchModel) handleReloadDone(msg reloadDoneMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Err == nil:
		m.status = fmt.Sprintf("%s reloaded", msg.Key)
	case errors.Is(msg.Err, engine.ErrLoadInProgress):
		m.status = fmt.Sprintf("%s: full load in progress, try again shortly", msg.Key)
	case errors.Is(msg.Err, engine.ErrAlreadyInFlight):
		m.status = fmt.Sprintf("%s is already reloading", msg.Key)
	default:
		m.status = fmt.Sprintf("reload %s failed: %v", msg.Key, msg.Err)
	}
	return m, m.sync()
}

func (m WatchModel) handleFavoriteDone(msg favoriteDoneMsg) (tea.Model, tea.Cmd) {
	m.toggles.Release(msg.Key)

	if msg.Err != nil {
		m.status = fmt.Sprintf("saving favorites failed: %v", msg.Err)
	} else if msg.Favorite {
		m.status = fmt.Sprintf("%s added to favorites", msg.Key)
	} else {
		m.status = fmt.Sprintf("%s removed from favorites", msg.Key)
	}

	if m.currentView() == watchlist.FavoritesView {
		if err := m.selectView(m.viewIdx); err != nil {
			m.status = err.Error()
		}
		return m, m.sync()
	}
	m.refreshRows()
	return m, nil
}

// toggleFavorite flips key's favorite flag and saves the watchlist off the
// UI goroutine.
func (m WatchModel) toggleFavorite(key record.Key) (tea.Model, tea.Cmd) {
	if !m.toggles.TryAcquire(key) {
		m.status = fmt.Sprintf("%s: favorite update already in progress", key)
		return m, nil
	}
	wl := m.wl
	return m, func() tea.Msg {
		fav := wl.ToggleFavorite(key)
		return favoriteDoneMsg{Key: key, Favorite: fav, Err: wl.Save()}
	}
}

func reloadCmd(ctx context.Context, eng Engine, key record.Key) tea.Cmd {
	return func() tea.Msg {
		return reloadDoneMsg{Key: key, Err: eng.ReloadKey(ctx, key)}
	}
}

func (m WatchModel) switchView(step int) (tea.Model, tea.Cmd) {
	if len(m.views) < 2 {
		return m, nil
	}
	idx := (m.viewIdx + step + len(m.views)) % len(m.views)
	if err := m.selectView(idx); err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.status = ""
	m.table.SetCursor(0)
	return m, m.sync()
}

// selectView makes views[idx] the tracked set.
func (m *WatchModel) selectView(idx int) error {
	keys, err := m.wl.View(m.views[idx])
	if err != nil {
		return err
	}
	m.viewIdx = idx
	m.keys = keys
	m.eng.SetTrackedSet(keys)
	m.pull()
	return nil
}

// sync re-reads the engine and returns a spinner command when a load starts.
func (m *WatchModel) sync() tea.Cmd {
	m.pull()
	return m.spin()
}

// pull copies the engine snapshot, progress and state into the model.
func (m *WatchModel) pull() {
	snapshot := m.eng.CurrentSnapshot()
	m.records = make(map[record.Key]record.Record, len(snapshot))
	for _, rec := range snapshot {
		m.records[rec.Key] = rec
	}
	m.progress = m.eng.CurrentProgress()
	m.engineState = m.eng.State()
	m.refreshRows()
}

func (m WatchModel) spin() tea.Cmd {
	if !m.loading() {
		m.loadingState.Stop()
		return nil
	}
	return m.loadingState.Start()
}

// loading reports whether the engine is running a full load.
func (m WatchModel) loading() bool {
	return m.engineState == engine.StateLoading
}

func (m WatchModel) currentView() string {
	if m.viewIdx < 0 || m.viewIdx >= len(m.views) {
		return ""
	}
	return m.views[m.viewIdx]
}

// cursorKey returns the key of the row under the table cursor.
func (m WatchModel) cursorKey() (record.Key, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.keys) {
		return "", false
	}
	return m.keys[i], true
}

// Selected returns the key shown in the detail view.
func (m WatchModel) Selected() record.Key {
	return m.selected
}

// State returns the current screen.
func (m WatchModel) State() ViewState {
	return m.state
}

// Status returns the last status line.
func (m WatchModel) Status() string {
	return m.status
}

func (m *WatchModel) buildTable() table.Model {
	columns := []table.Column{
		{Title: "Symbol", Width: 10}, //nolint:mnd // Column width.
		{Title: "Name", Width: 28},   //nolint:mnd // Column width.
		{Title: "Price", Width: 11},  //nolint:mnd // Column width.
		{Title: "Change", Width: 9},  //nolint:mnd // Column width.
		{Title: "Chg%", Width: 8},    //nolint:mnd // Column width.
		{Title: "Volume", Width: 14}, //nolint:mnd // Column width.
		{Title: "As of", Width: 9},   //nolint:mnd // Column width.
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(m.tableHeight()),
	)

	s := table.DefaultStyles()
	s.Header = TableHeaderStyle
	s.Selected = TableSelectedStyle
	t.SetStyles(s)
	return t
}

func (m *WatchModel) resizeTable() {
	m.table.SetHeight(m.tableHeight())
}

func (m *WatchModel) tableHeight() int {
	return max(m.height-chromeHeight, minHeight)
}

// refreshRows rebuilds the table rows from the tracked keys, keeping the cursor.
func (m *WatchModel) refreshRows() {
	rows := make([]table.Row, len(m.keys))
	for i, key := range m.keys {
		rows[i] = m.buildRow(key)
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

func (m *WatchModel) buildRow(key record.Key) table.Row {
	symbol := string(key)
	if m.wl.IsFavorite(key) {
		symbol = "★ " + symbol
	}

	rec, ok := m.records[key]
	if !ok {
		return table.Row{symbol, m.placeholderLabel(key), placeholder, placeholder, placeholder, placeholder, placeholder}
	}

	q := rec.Quote
	return table.Row{
		symbol,
		truncate(rec.DisplayName(), 28), //nolint:mnd // Matches the Name column width.
		FormatPrice(q.Price),
		FormatChange(q.Change),
		FormatPercent(q.ChangePercent),
		FormatVolume(q.Volume),
		FormatAsOf(q.AsOf),
	}
}

// placeholderLabel describes a key with no record yet.
func (m *WatchModel) placeholderLabel(key record.Key) string {
	switch {
	case m.progress.Current == key:
		return "fetching..."
	case !m.loading():
		return "unavailable"
	default:
		return "loading..."
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
