package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/finwatch/internal/record"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func fastOptions() Options {
	o := DefaultOptions()
	o.InterItemDelay = 0
	o.RefreshBatchDelay = 0
	o.RefreshInterval = time.Hour
	return o
}

func newTestEngine(t *testing.T, src *fakeSource, opts ...Option) (*Engine, *eventLog) {
	t.Helper()
	events := &eventLog{}
	all := append([]Option{WithOptions(fastOptions()), WithObserver(events.add)}, opts...)
	e, err := New(context.Background(), src, all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, events
}

func waitReady(t *testing.T, e *Engine) {
	t.Helper()
	require.Eventually(t, func() bool { return e.State() == StateReady }, waitFor, tick)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.Error(t, err)

	bad := DefaultOptions()
	bad.RefreshBatchSize = 0
	_, err = New(context.Background(), newFakeSource(), WithOptions(bad))
	require.ErrorIs(t, err, ErrInvalidOptions)

	bad = DefaultOptions()
	bad.PacingPolicy = "leaky"
	_, err = New(context.Background(), newFakeSource(), WithOptions(bad))
	require.ErrorIs(t, err, ErrInvalidOptions)
}

func TestEngine_InitialState(t *testing.T) {
	e, _ := newTestEngine(t, newFakeSource())
	assert.Equal(t, StateIdle, e.State())
	assert.Zero(t, e.Epoch())
	assert.Empty(t, e.CurrentSnapshot())
	assert.Equal(t, 0, e.CurrentProgress().Total)
}

func TestEngine_LoadsAndBecomesReady(t *testing.T) {
	src := newFakeSource()
	e, events := newTestEngine(t, src)

	require.True(t, e.SetTrackedSet(keys("C", "A", "B")))
	waitReady(t, e)

	snap := e.CurrentSnapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, record.Key("C"), snap[0].Key)
	assert.Equal(t, record.Key("A"), snap[1].Key)
	assert.Equal(t, record.Key("B"), snap[2].Key)

	progress := e.CurrentProgress()
	assert.Equal(t, 3, progress.Loaded)
	assert.Equal(t, 3, progress.Total)

	assert.Len(t, events.ofKind(EventEpochStarted), 1)
	assert.Len(t, events.ofKind(EventKeyLoaded), 3)
	assert.Len(t, events.ofKind(EventLoadComplete), 1)
}

func TestEngine_IdempotentSet(t *testing.T) {
	src := newFakeSource()
	e, events := newTestEngine(t, src)

	require.True(t, e.SetTrackedSet(keys("A", "B")))
	waitReady(t, e)
	before := e.CurrentProgress()

	assert.False(t, e.SetTrackedSet([]record.Key{"A", "B"}))
	assert.Equal(t, uint64(1), e.Epoch())
	assert.Equal(t, before, e.CurrentProgress())
	assert.Equal(t, StateReady, e.State())

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, src.FullCalls(), 2, "no loader restarted")
	assert.Len(t, events.ofKind(EventEpochStarted), 1)
}

func TestEngine_RepeatedKeysFetchedOnce(t *testing.T) {
	src := newFakeSource()
	e, events := newTestEngine(t, src)

	require.True(t, e.SetTrackedSet(keys("A", "A", "B")))
	waitReady(t, e)

	assert.Equal(t, keys("A", "B"), src.FullCalls())
	assert.Equal(t, keys("A", "B"), e.TrackedSet())
	progress := e.CurrentProgress()
	assert.Equal(t, 2, progress.Loaded)
	assert.Equal(t, 2, progress.Total)

	started := events.ofKind(EventEpochStarted)
	require.Len(t, started, 1)
	assert.Equal(t, keys("A", "B"), started[0].Keys)

	assert.False(t, e.SetTrackedSet(keys("A", "B", "A")), "same set once repeats are dropped")
	assert.Equal(t, uint64(1), e.Epoch())
}

func TestEngine_StartEventsPrecedeEpochWork(t *testing.T) {
	src := newFakeSource()
	e, events := newTestEngine(t, src)

	e.SetTrackedSet(keys("A", "B"))
	waitReady(t, e)

	// Every later epoch finds its keys cached and completes at once.
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			e.SetTrackedSet(keys("B", "A"))
		} else {
			e.SetTrackedSet(keys("A", "B"))
		}
	}
	waitReady(t, e)
	last := e.Epoch()
	require.Eventually(t, func() bool {
		for _, ev := range events.ofKind(EventLoadComplete) {
			if ev.Epoch == last {
				return true
			}
		}
		return false
	}, waitFor, tick)

	seen := map[uint64]int{}
	for _, ev := range events.all() {
		n := seen[ev.Epoch]
		seen[ev.Epoch]++
		switch n {
		case 0:
			assert.Equal(t, EventEpochStarted, ev.Kind, "epoch %d", ev.Epoch)
		case 1:
			assert.Equal(t, EventStateChanged, ev.Kind, "epoch %d", ev.Epoch)
			assert.Equal(t, StateLoading, ev.State, "epoch %d", ev.Epoch)
		}
	}
	assert.Len(t, seen, 51)
}

func TestEngine_OrderChangeIsNewSet(t *testing.T) {
	e, _ := newTestEngine(t, newFakeSource())
	require.True(t, e.SetTrackedSet(keys("A", "B")))
	waitReady(t, e)

	assert.True(t, e.SetTrackedSet(keys("B", "A")))
	assert.Equal(t, uint64(2), e.Epoch())
}

func TestEngine_PartialFailure(t *testing.T) {
	src := newFakeSource()
	src.failFull["B"] = errUpstream
	e, _ := newTestEngine(t, src)

	e.SetTrackedSet(keys("A", "B", "C"))
	waitReady(t, e)

	progress := e.CurrentProgress()
	assert.Equal(t, 2, progress.Loaded)
	assert.Equal(t, 3, progress.Total)

	snap := e.CurrentSnapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, record.Key("A"), snap[0].Key)
	assert.Equal(t, record.Key("C"), snap[1].Key)
}

func TestEngine_AtMostOneLoader(t *testing.T) {
	src := newFakeSource()
	gateA := src.gate("A")
	e, _ := newTestEngine(t, src)

	e.SetTrackedSet(keys("A", "B"))
	require.Equal(t, record.Key("A"), <-src.started)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch i % 3 {
			case 0:
				e.SetTrackedSet(keys("A", "B", "C"))
			case 1:
				e.SetTrackedSet(keys("A", "B"))
			default:
				_ = e.ForceRefresh()
			}
		}()
	}
	wg.Wait()

	assert.True(t, e.guard.Held())
	close(gateA)

	waitReady(t, e)
	assert.Equal(t, 1, src.MaxActive(), "full fetches never overlapped")
	assert.Len(t, e.CurrentSnapshot(), len(e.TrackedSet()))
}

func TestEngine_EpochCancellation(t *testing.T) {
	src := newFakeSource()
	gateB := src.gate("B")
	e, events := newTestEngine(t, src)

	e.SetTrackedSet(keys("A", "B", "C"))
	require.Equal(t, record.Key("A"), <-src.started)
	require.Equal(t, record.Key("B"), <-src.started)

	require.True(t, e.SetTrackedSet(keys("X", "Y")))
	assert.Equal(t, uint64(2), e.Epoch())
	close(gateB)

	waitReady(t, e)

	assert.True(t, e.cache.Has("A"), "writes committed before the transition stay")
	assert.False(t, e.cache.Has("B"))
	assert.False(t, e.cache.Has("C"))
	assert.NotContains(t, src.FullCalls(), record.Key("C"))
	assert.Len(t, e.CurrentSnapshot(), 2)

	for _, ev := range events.ofKind(EventKeyLoaded) {
		if ev.Epoch == 1 {
			assert.Equal(t, record.Key("A"), ev.Key, "epoch 1 loaded nothing after the transition")
		}
	}
}

func TestEngine_ForceRefresh(t *testing.T) {
	src := newFakeSource()
	e, _ := newTestEngine(t, src)

	e.SetTrackedSet(keys("A", "B"))
	waitReady(t, e)
	require.Len(t, e.CurrentSnapshot(), 2)

	gateA := src.gate("A")
	require.NoError(t, e.ForceRefresh())

	assert.Empty(t, e.CurrentSnapshot(), "entries are evicted before the reload")
	assert.Equal(t, 0, e.CurrentProgress().Loaded)
	assert.Equal(t, uint64(2), e.Epoch())
	assert.Equal(t, StateLoading, e.State())

	close(gateA)
	waitReady(t, e)
	assert.Len(t, e.CurrentSnapshot(), 2)
	assert.Len(t, src.FullCalls(), 4)
}

func TestEngine_RefreshTicks(t *testing.T) {
	src := newFakeSource()
	opts := fastOptions()
	opts.RefreshInterval = 10 * time.Millisecond
	e, events := newTestEngine(t, src, WithOptions(opts))

	e.SetTrackedSet(keys("A", "B"))
	waitReady(t, e)

	src.setPrice(321)
	require.Eventually(t, func() bool {
		rec, ok := e.cache.Get("A")
		return ok && rec.Quote.Price.Equal(decimal.NewFromInt(321))
	}, waitFor, tick)
	assert.NotEmpty(t, events.ofKind(EventPricesRefreshed))
}

func TestEngine_RefreshGating(t *testing.T) {
	src := newFakeSource()
	opts := fastOptions()
	opts.RefreshInterval = 5 * time.Millisecond
	e, _ := newTestEngine(t, src, WithOptions(opts))

	e.SetTrackedSet(keys("A"))
	waitReady(t, e)

	require.True(t, e.guard.TryAcquire())
	time.Sleep(10 * time.Millisecond)
	settled := len(src.PriceCalls())
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, src.PriceCalls(), settled, "no price fetches while a full load holds the guard")
	e.guard.Release()

	require.Eventually(t, func() bool { return len(src.PriceCalls()) > settled }, waitFor, tick)
}

func TestEngine_FocusSuppressesRefresh(t *testing.T) {
	src := newFakeSource()
	opts := fastOptions()
	opts.RefreshInterval = 5 * time.Millisecond
	e, _ := newTestEngine(t, src, WithOptions(opts))

	e.NotifyFocusExclusive(true)
	assert.True(t, e.FocusExclusive())
	e.SetTrackedSet(keys("A"))
	waitReady(t, e)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, src.PriceCalls())

	e.NotifyFocusExclusive(false)
	require.Eventually(t, func() bool { return len(src.PriceCalls()) > 0 }, waitFor, tick)
}

func TestEngine_ReloadKey(t *testing.T) {
	src := newFakeSource()
	e, _ := newTestEngine(t, src)
	ctx := context.Background()

	require.ErrorIs(t, e.ReloadKey(ctx, "A"), ErrUnknownKey, "nothing tracked yet")

	e.SetTrackedSet(keys("A", "B"))
	waitReady(t, e)

	require.ErrorIs(t, e.ReloadKey(ctx, "ZZZ"), ErrUnknownKey)

	src.setPrice(42)
	require.NoError(t, e.ReloadKey(ctx, "A"))
	rec, ok := e.cache.Get("A")
	require.True(t, ok)
	assert.True(t, rec.Quote.Price.Equal(decimal.NewFromInt(42)))

	t.Run("guard held", func(t *testing.T) {
		require.True(t, e.guard.TryAcquire())
		defer e.guard.Release()
		assert.ErrorIs(t, e.ReloadKey(ctx, "A"), ErrLoadInProgress)
	})

	t.Run("already in flight", func(t *testing.T) {
		gate := src.gate("B")
		done := make(chan error)
		go func() { done <- e.ReloadKey(ctx, "B") }()
		require.Eventually(t, func() bool { return e.reloads.Has("B") }, waitFor, tick)

		assert.ErrorIs(t, e.ReloadKey(ctx, "B"), ErrAlreadyInFlight)
		close(gate)
		require.NoError(t, <-done)
	})

	t.Run("fetch error", func(t *testing.T) {
		src.failKey("A", errUpstream)
		defer src.failKey("A", nil)
		assert.ErrorIs(t, e.ReloadKey(ctx, "A"), errUpstream)
	})
}

func TestEngine_Close(t *testing.T) {
	src := newFakeSource()
	e, _ := newTestEngine(t, src)
	e.SetTrackedSet(keys("A"))
	waitReady(t, e)

	require.NoError(t, e.Close())
	assert.Equal(t, StateClosed, e.State())
	require.NoError(t, e.Close())

	assert.False(t, e.SetTrackedSet(keys("B")))
	assert.ErrorIs(t, e.ForceRefresh(), ErrClosed)
	assert.ErrorIs(t, e.ReloadKey(context.Background(), "A"), ErrClosed)
}

func TestEngine_CloseStopsLoader(t *testing.T) {
	src := newFakeSource()
	e, err := New(context.Background(), src, WithOptions(fastOptions()))
	require.NoError(t, err)

	gateB := src.gate("B")
	e.SetTrackedSet(keys("A", "B", "C"))
	require.Equal(t, record.Key("A"), <-src.started)
	require.Equal(t, record.Key("B"), <-src.started)

	closed := make(chan struct{})
	go func() {
		_ = e.Close()
		close(closed)
	}()
	require.Eventually(t, func() bool { return e.State() == StateClosed }, waitFor, tick)
	close(gateB)

	select {
	case <-closed:
	case <-time.After(waitFor):
		t.Fatal("Close did not return")
	}
	assert.False(t, e.cache.Has("B"))
	assert.NotContains(t, src.FullCalls(), record.Key("C"))
}

func TestStateAndEventNames(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "key_loaded", EventKeyLoaded.String())
	assert.Equal(t, "prices_refreshed", EventPricesRefreshed.String())
	assert.Equal(t, "unknown", EventKind(99).String())
}
