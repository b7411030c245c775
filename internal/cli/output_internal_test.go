package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rshade/finwatch/internal/config"
	"github.com/rshade/finwatch/internal/engine"
	"github.com/rshade/finwatch/internal/engine/batch"
	"github.com/rshade/finwatch/internal/engine/cache"
	"github.com/rshade/finwatch/internal/record"
)

type mapLookup map[record.Key]record.Record

func (m mapLookup) Lookup(key record.Key) (cache.CacheEntry, bool) {
	rec, ok := m[key]
	if !ok {
		return cache.CacheEntry{}, false
	}
	return cache.NewCacheEntry(rec, time.Now()), true
}

func TestEventPrinter(t *testing.T) {
	at := time.Date(2026, 3, 2, 14, 30, 5, 0, time.UTC)
	lookup := mapLookup{
		"AAPL": {
			Key:     "AAPL",
			Profile: record.Profile{Name: "Apple Inc."},
			Quote: record.Quote{
				Price:         decimal.RequireFromString("190.10"),
				Change:        decimal.RequireFromString("1.5"),
				ChangePercent: decimal.RequireFromString("0.79"),
				Volume:        52123456,
			},
		},
	}

	var buf bytes.Buffer
	p := newEventPrinter(&buf, lookup)

	p.handle(engine.Event{Kind: engine.EventEpochStarted, Epoch: 3, Keys: []record.Key{"AAPL", "MSFT"}, At: at})
	p.handle(engine.Event{Kind: engine.EventKeyLoaded, Epoch: 3, Key: "AAPL", At: at})
	p.handle(engine.Event{Kind: engine.EventKeyLoaded, Epoch: 3, Key: "MSFT", At: at})
	p.handle(engine.Event{Kind: engine.EventProgress, Epoch: 3, At: at})
	p.handle(engine.Event{
		Kind: engine.EventLoadComplete, Epoch: 3, At: at,
		Progress: batch.LoadProgress{Loaded: 1, Total: 2},
	})
	p.handle(engine.Event{Kind: engine.EventPricesRefreshed, Epoch: 3, Keys: []record.Key{"AAPL"}, At: at})

	out := buf.String()
	assert.Contains(t, out, "14:30:05 epoch 3 started, 2 keys\n")
	assert.Contains(t, out, "14:30:05 loaded AAPL")
	assert.Contains(t, out, "Apple Inc.")
	assert.Contains(t, out, "52,123,456")
	assert.Contains(t, out, "14:30:05 load complete: 1/2 records\n")
	assert.Contains(t, out, "14:30:05 price  AAPL")
	assert.NotContains(t, out, "MSFT  ", "keys without a record are skipped")
	assert.Equal(t, 4, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestMissingKeys(t *testing.T) {
	keys := []record.Key{"AAPL", "MSFT", "TSLA", "JPM"}
	records := []record.Record{{Key: "JPM"}, {Key: "AAPL"}}

	assert.Equal(t, []record.Key{"MSFT", "TSLA"}, missingKeys(keys, records))
	assert.Nil(t, missingKeys(keys[:1], records[1:]))
}

func TestViewOrDefault(t *testing.T) {
	cfg := &config.Config{}
	assert.Equal(t, "default", viewOrDefault(cfg, ""))
	assert.Equal(t, "tech", viewOrDefault(cfg, "tech"))

	cfg.Watchlist.DefaultView = "energy"
	assert.Equal(t, "energy", viewOrDefault(cfg, ""))
}

func TestRedactSecrets(t *testing.T) {
	cfg := config.Config{}
	cfg.Source.HTTP.APIKey = "key"
	cfg.Source.Redis.Password = "pw"

	got := redactSecrets(cfg)
	assert.Equal(t, redacted, got.Source.HTTP.APIKey)
	assert.Equal(t, redacted, got.Source.Redis.Password)
	assert.Equal(t, "key", cfg.Source.HTTP.APIKey, "input is not modified")

	assert.Empty(t, redactSecrets(config.Config{}).Source.HTTP.APIKey)
}
