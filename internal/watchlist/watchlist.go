// Package watchlist stores named views of instrument keys in a YAML file.
//
//	version: 1
//	views:
//	  tech: [AAPL, MSFT, NVDA]
//	  banks: [JPM, BAC]
//	favorites: [AAPL]
//
// "favorites" is itself a view. The order of keys inside a view is the order
// the engine tracks and displays them in.
package watchlist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rshade/finwatch/internal/record"
)

// FileVersion is the current schema version of the watchlist file.
const FileVersion = 1

// FavoritesView is the name of the built-in favorites view.
const FavoritesView = "favorites"

// DefaultView is the view created for a fresh watchlist.
const DefaultView = "default"

var (
	// ErrCorrupted indicates the watchlist file exists but cannot be parsed.
	ErrCorrupted = errors.New("watchlist file corrupted")

	// ErrUnknownView is returned for a view name that does not exist.
	ErrUnknownView = errors.New("unknown view")
)

// defaultKeys seeds a fresh watchlist.
//
//nolint:gochecknoglobals // Read-only seed data.
var defaultKeys = []record.Key{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "TSLA", "META", "JPM"}

type fileData struct {
	Version   int                 `yaml:"version"`
	Views     map[string][]string `yaml:"views"`
	Favorites []string            `yaml:"favorites"`
}

// Watchlist is the in-memory form of the watchlist file. It is safe for
// concurrent use.
type Watchlist struct {
	mu        sync.RWMutex
	path      string
	views     map[string][]record.Key
	favorites []record.Key
}

// DefaultPath returns ~/.finwatch/watchlist.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, ".finwatch", "watchlist.yaml"), nil
}

// New returns a watchlist with the default view, bound to path.
func New(path string) *Watchlist {
	return &Watchlist{
		path:  path,
		views: map[string][]record.Key{DefaultView: record.CloneKeys(defaultKeys)},
	}
}

// Load reads the watchlist at path. A missing file yields New(path).
func Load(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(path), nil
		}
		return nil, fmt.Errorf("reading watchlist: %w", err)
	}

	var fd fileData
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupted, err)
	}
	if fd.Version != 0 && fd.Version != FileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d (expected %d)", ErrCorrupted, fd.Version, FileVersion)
	}

	w := &Watchlist{path: path, views: make(map[string][]record.Key, len(fd.Views))}
	for name, symbols := range fd.Views {
		if name == FavoritesView {
			return nil, fmt.Errorf("%w: view name %q is reserved", ErrCorrupted, name)
		}
		keys, err := record.ParseKeys(symbols)
		if err != nil {
			return nil, fmt.Errorf("%w: view %q: %w", ErrCorrupted, name, err)
		}
		w.views[name] = keys
	}
	favs, err := record.ParseKeys(fd.Favorites)
	if err != nil {
		return nil, fmt.Errorf("%w: favorites: %w", ErrCorrupted, err)
	}
	w.favorites = favs
	return w, nil
}

// Path returns the file the watchlist saves to.
func (w *Watchlist) Path() string {
	return w.path
}

// Save writes the watchlist atomically.
func (w *Watchlist) Save() error {
	w.mu.RLock()
	fd := fileData{
		Version:   FileVersion,
		Views:     make(map[string][]string, len(w.views)),
		Favorites: record.Strings(w.favorites),
	}
	for name, keys := range w.views {
		fd.Views[name] = record.Strings(keys)
	}
	w.mu.RUnlock()

	data, err := yaml.Marshal(fd)
	if err != nil {
		return fmt.Errorf("marshaling watchlist: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
		return fmt.Errorf("creating watchlist directory: %w", err)
	}

	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing watchlist temp file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming watchlist temp file: %w", err)
	}
	return nil
}

// ViewNames returns the view names sorted, with favorites last.
func (w *Watchlist) ViewNames() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	names := make([]string, 0, len(w.views)+1)
	for name := range w.views {
		names = append(names, name)
	}
	sort.Strings(names)
	return append(names, FavoritesView)
}

// View returns the keys of a view in order.
func (w *Watchlist) View(name string) ([]record.Key, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if name == FavoritesView {
		return record.CloneKeys(w.favorites), nil
	}
	keys, ok := w.views[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	return record.CloneKeys(keys), nil
}

// IsFavorite reports whether key is a favorite.
func (w *Watchlist) IsFavorite(key record.Key) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Contains(w.favorites, key)
}

// ToggleFavorite adds or removes key from favorites and reports whether it
// is a favorite afterwards.
func (w *Watchlist) ToggleFavorite(key record.Key) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if i := slices.Index(w.favorites, key); i >= 0 {
		w.favorites = slices.Delete(w.favorites, i, i+1)
		return false
	}
	w.favorites = append(w.favorites, key)
	return true
}

// Add appends keys to a view, creating it if needed. Keys already present
// keep their position.
func (w *Watchlist) Add(view string, keys ...record.Key) {
	w.mu.Lock()
	defer w.mu.Unlock()

	target := &w.favorites
	if view != FavoritesView {
		cur := w.views[view]
		target = &cur
		defer func() { w.views[view] = cur }()
	}
	for _, k := range keys {
		if !slices.Contains(*target, k) {
			*target = append(*target, k)
		}
	}
}

// Remove deletes keys from a view and returns how many were removed.
func (w *Watchlist) Remove(view string, keys ...record.Key) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var cur []record.Key
	if view == FavoritesView {
		cur = w.favorites
	} else {
		var ok bool
		if cur, ok = w.views[view]; !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownView, view)
		}
	}

	before := len(cur)
	cur = slices.DeleteFunc(cur, func(k record.Key) bool { return slices.Contains(keys, k) })

	if view == FavoritesView {
		w.favorites = cur
	} else {
		w.views[view] = cur
	}
	return before - len(cur), nil
}
