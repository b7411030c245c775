package engine

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/finwatch/internal/engine/cache"
	"github.com/rshade/finwatch/internal/record"
)

// loadedEpoch returns a fully loaded epoch with every key cached.
func loadedEpoch(t *testing.T, store *cache.Store, tracked []record.Key) *Epoch {
	t.Helper()
	for _, k := range tracked {
		store.Set(k, sampleRecord(k, 100))
	}
	ep := newEpoch(context.Background(), 1, len(tracked))
	ep.markLoaded()
	return ep
}

func twelveKeys() []record.Key {
	out := make([]record.Key, 12)
	for i := range out {
		out[i] = record.Key(fmt.Sprintf("K%02d", i))
	}
	return out
}

func TestPriceRefresher_BatchSizing(t *testing.T) {
	src := newFakeSource()
	store := cache.NewStore()
	tracked := twelveKeys()
	ep := loadedEpoch(t, store, tracked)

	r := NewPriceRefresher(src, store, NewLoadGuard(), noPacing(), 5, nil, nil)
	res, err := r.Refresh(ep, tracked)
	require.NoError(t, err)

	calls := src.PriceCalls()
	require.Len(t, calls, 3)
	sizes := []int{len(calls[0]), len(calls[1]), len(calls[2])}
	assert.Equal(t, []int{5, 5, 2}, sizes)
	assert.Equal(t, tracked[:5], calls[0])
	assert.Equal(t, 3, res.Batches)
	assert.Len(t, res.Patched, 12)
}

func TestPriceRefresher_FieldIsolation(t *testing.T) {
	src := newFakeSource()
	store := cache.NewStore()
	tracked := keys("A")
	ep := loadedEpoch(t, store, tracked)

	before, ok := store.Entry("A")
	require.True(t, ok)

	src.setPrice(250)
	_, err := NewPriceRefresher(src, store, NewLoadGuard(), noPacing(), 5, nil, nil).Refresh(ep, tracked)
	require.NoError(t, err)

	after, ok := store.Entry("A")
	require.True(t, ok)

	assert.Equal(t, before.Record.Profile, after.Record.Profile)
	assert.Equal(t, before.Record.Fundamentals, after.Record.Fundamentals)
	assert.Equal(t, before.Record.Analysis, after.Record.Analysis)
	assert.Equal(t, before.Record.Statements, after.Record.Statements)
	assert.Equal(t, before.Record.Key, after.Record.Key)
	assert.Equal(t, before.LoadedAt, after.LoadedAt)

	assert.True(t, after.Record.Quote.Price.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, int64(2500), after.Record.Quote.Volume)
}

func TestPriceRefresher_EventCarriesCommittedQuotes(t *testing.T) {
	src := newFakeSource()
	store := cache.NewStore()
	tracked := keys("A", "B")
	ep := loadedEpoch(t, store, tracked)
	events := &eventLog{}
	r := NewPriceRefresher(src, store, NewLoadGuard(), noPacing(), 5, nil, events.add)

	src.setPrice(250)
	_, err := r.Refresh(ep, tracked)
	require.NoError(t, err)
	src.setPrice(300)
	_, err = r.Refresh(ep, tracked)
	require.NoError(t, err)

	refreshed := events.ofKind(EventPricesRefreshed)
	require.Len(t, refreshed, 2)
	first := refreshed[0].Quotes["A"]
	assert.True(t, first.Price.Equal(decimal.NewFromInt(250)), "earlier event keeps its own price")
	assert.True(t, refreshed[1].Quotes["B"].Price.Equal(decimal.NewFromInt(300)))
	assert.Len(t, refreshed[1].Quotes, 2)
}

func TestPriceRefresher_LogsBatchProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	store := cache.NewStore()
	tracked := keys("A", "B", "C", "D", "E", "F", "G")
	for _, k := range tracked {
		store.Set(k, sampleRecord(k, 100))
	}
	ep := newEpoch(logger.WithContext(context.Background()), 1, len(tracked))
	ep.markLoaded()

	_, err := NewPriceRefresher(newFakeSource(), store, NewLoadGuard(), noPacing(), 5, nil, nil).Refresh(ep, tracked)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"batches_done":1,"batches_total":2`)
	assert.Contains(t, out, `"batches_done":2,"batches_total":2`)
}

func TestPriceRefresher_Preconditions(t *testing.T) {
	tracked := keys("A", "B")

	tests := []struct {
		name  string
		setup func(store *cache.Store, guard *LoadGuard, ep *Epoch) (focused bool)
		want  SkipReason
	}{
		{
			name: "guard held",
			setup: func(_ *cache.Store, guard *LoadGuard, _ *Epoch) bool {
				guard.TryAcquire()
				return false
			},
			want: SkipLoadInProgress,
		},
		{
			name: "focus exclusive",
			setup: func(*cache.Store, *LoadGuard, *Epoch) bool {
				return true
			},
			want: SkipFocus,
		},
		{
			name: "nothing loaded",
			setup: func(store *cache.Store, _ *LoadGuard, _ *Epoch) bool {
				store.Evict(tracked)
				return false
			},
			want: SkipNothingLoaded,
		},
		{
			name: "epoch invalidated",
			setup: func(_ *cache.Store, _ *LoadGuard, ep *Epoch) bool {
				ep.invalidate()
				return false
			},
			want: SkipEpochInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			store := cache.NewStore()
			guard := NewLoadGuard()
			ep := loadedEpoch(t, store, tracked)
			focused := tt.setup(store, guard, ep)

			r := NewPriceRefresher(src, store, guard, noPacing(), 5, func() bool { return focused }, nil)
			res, err := r.Refresh(ep, tracked)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Skipped)
			assert.Empty(t, src.PriceCalls(), "a suppressed cycle performs zero fetches")
		})
	}

	t.Run("not fully loaded", func(t *testing.T) {
		src := newFakeSource()
		store := cache.NewStore()
		store.Set("A", sampleRecord("A", 1))
		ep := newEpoch(context.Background(), 1, 2)

		res, err := NewPriceRefresher(src, store, NewLoadGuard(), noPacing(), 5, nil, nil).Refresh(ep, tracked)
		require.NoError(t, err)
		assert.Equal(t, SkipNotLoaded, res.Skipped)
		assert.Empty(t, src.PriceCalls())
	})
}

func TestPriceRefresher_YieldsToLoaderMidCycle(t *testing.T) {
	src := newFakeSource()
	store := cache.NewStore()
	guard := NewLoadGuard()
	tracked := twelveKeys()
	ep := loadedEpoch(t, store, tracked)

	src.onPrices = func(idx int) {
		if idx == 0 {
			guard.TryAcquire()
		}
	}

	res, err := NewPriceRefresher(src, store, guard, noPacing(), 5, nil, nil).Refresh(ep, tracked)
	require.NoError(t, err)
	assert.Len(t, src.PriceCalls(), 1)
	assert.Equal(t, SkipLoadInProgress, res.Stopped)
	assert.Len(t, res.Patched, 5)
}

func TestPriceRefresher_FocusMidCycle(t *testing.T) {
	src := newFakeSource()
	store := cache.NewStore()
	tracked := twelveKeys()
	ep := loadedEpoch(t, store, tracked)

	focused := false
	src.onPrices = func(int) { focused = true }

	res, err := NewPriceRefresher(src, store, NewLoadGuard(), noPacing(), 5, func() bool { return focused }, nil).
		Refresh(ep, tracked)
	require.NoError(t, err)
	assert.Len(t, src.PriceCalls(), 1)
	assert.Equal(t, SkipFocus, res.Stopped)
}

func TestPriceRefresher_BatchFailureIsolation(t *testing.T) {
	src := newFakeSource()
	src.failBatch[1] = errUpstream
	src.setPrice(7)
	store := cache.NewStore()
	tracked := twelveKeys()
	ep := loadedEpoch(t, store, tracked)
	events := &eventLog{}

	res, err := NewPriceRefresher(src, store, NewLoadGuard(), noPacing(), 5, nil, events.add).Refresh(ep, tracked)
	require.Error(t, err)
	assert.ErrorIs(t, err, errUpstream)
	assert.Contains(t, err.Error(), "batch 1 failed")

	assert.Len(t, src.PriceCalls(), 3)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.Patched, 7)

	rec, _ := store.Get(tracked[5])
	assert.True(t, rec.Quote.Price.Equal(decimal.NewFromInt(100)), "keys of the failed batch keep their old quote")
	rec, _ = store.Get(tracked[10])
	assert.True(t, rec.Quote.Price.Equal(decimal.NewFromInt(7)))

	refreshed := events.ofKind(EventPricesRefreshed)
	require.Len(t, refreshed, 1)
	assert.Len(t, refreshed[0].Keys, 7)
}

func TestPriceRefresher_OnlyLoadedKeys(t *testing.T) {
	src := newFakeSource()
	store := cache.NewStore()
	store.Set("B", sampleRecord("B", 1))
	ep := newEpoch(context.Background(), 1, 3)
	ep.markLoaded()

	res, err := NewPriceRefresher(src, store, NewLoadGuard(), noPacing(), 5, nil, nil).Refresh(ep, keys("A", "B", "C"))
	require.NoError(t, err)
	assert.Equal(t, [][]record.Key{keys("B")}, src.PriceCalls())
	assert.Equal(t, keys("B"), res.Patched)
	assert.False(t, store.Has("A"))
}

func TestBatchFailures(t *testing.T) {
	assert.NoError(t, batchFailures(nil))
	assert.NoError(t, batchFailures(context.Canceled))
	assert.Error(t, batchFailures(errUpstream))
}
