package watchlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/finwatch/internal/record"
)

func TestLoad_MissingFileGivesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	w, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultView, FavoritesView}, w.ViewNames())
	keys, err := w.View(DefaultView)
	require.NoError(t, err)
	assert.Equal(t, defaultKeys, keys)
	assert.Equal(t, path, w.Path())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	content := `version: 1
views:
  tech: [aapl, MSFT, nvda, AAPL]
  banks: [JPM]
favorites: [MSFT]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	w, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"banks", "tech", FavoritesView}, w.ViewNames())

	tech, err := w.View("tech")
	require.NoError(t, err)
	assert.Equal(t, []record.Key{"AAPL", "MSFT", "NVDA"}, tech, "normalized and deduplicated in order")

	favs, err := w.View(FavoritesView)
	require.NoError(t, err)
	assert.Equal(t, []record.Key{"MSFT"}, favs)
	assert.True(t, w.IsFavorite("MSFT"))

	_, err = w.View("nope")
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestLoad_Corrupted(t *testing.T) {
	tests := map[string]string{
		"bad yaml":      "views: [",
		"bad version":   "version: 9\n",
		"bad key":       "views:\n  x: ['has space']\n",
		"reserved view": "views:\n  favorites: [AAPL]\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "watchlist.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrCorrupted)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "watchlist.yaml")
	w := New(path)
	w.Add("energy", "XOM", "CVX")
	w.ToggleFavorite("XOM")
	require.NoError(t, w.Save())

	loaded, err := Load(path)
	require.NoError(t, err)
	energy, err := loaded.View("energy")
	require.NoError(t, err)
	assert.Equal(t, []record.Key{"XOM", "CVX"}, energy)
	assert.True(t, loaded.IsFavorite("XOM"))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestToggleFavorite(t *testing.T) {
	w := New("")
	assert.True(t, w.ToggleFavorite("AAPL"))
	assert.True(t, w.ToggleFavorite("MSFT"))
	assert.False(t, w.ToggleFavorite("AAPL"))

	favs, _ := w.View(FavoritesView)
	assert.Equal(t, []record.Key{"MSFT"}, favs)
}

func TestAddRemove(t *testing.T) {
	w := New("")
	w.Add(DefaultView, "AAPL", "IBM")
	keys, _ := w.View(DefaultView)
	assert.Equal(t, record.Key("IBM"), keys[len(keys)-1])
	assert.Len(t, keys, len(defaultKeys)+1)

	n, err := w.Remove(DefaultView, "IBM", "AAPL", "NOPE")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	w.Add(FavoritesView, "TSLA")
	n, err = w.Remove(FavoritesView, "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = w.Remove("missing", "AAPL")
	assert.ErrorIs(t, err, ErrUnknownView)
}
