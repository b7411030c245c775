package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rshade/finwatch/internal/record"
	"github.com/rshade/finwatch/internal/source"
)

// fakeSource is a scriptable data source. FetchFull blocks on a key's gate if
// one is set; gates ignore ctx so tests can release a fetch after its epoch
// was invalidated.
type fakeSource struct {
	mu         sync.Mutex
	fullCalls  []record.Key
	priceCalls [][]record.Key
	failFull   map[record.Key]error
	failBatch  map[int]error
	gates      map[record.Key]chan struct{}
	started    chan record.Key
	price      int64
	onPrices   func(batchIndex int)

	active    int
	maxActive int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		failFull:  map[record.Key]error{},
		failBatch: map[int]error{},
		gates:     map[record.Key]chan struct{}{},
		started:   make(chan record.Key, 64),
		price:     100,
	}
}

func (f *fakeSource) gate(key record.Key) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[key] = ch
	return ch
}

func (f *fakeSource) failKey(key record.Key, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failFull, key)
		return
	}
	f.failFull[key] = err
}

func (f *fakeSource) setPrice(p int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = p
}

func (f *fakeSource) FetchFull(ctx context.Context, key record.Key) (record.Record, error) {
	f.mu.Lock()
	f.fullCalls = append(f.fullCalls, key)
	gate := f.gates[key]
	failErr := f.failFull[key]
	price := f.price
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	select {
	case f.started <- key:
	default:
	}

	if gate != nil {
		<-gate
	}
	if failErr != nil {
		return record.Record{}, failErr
	}
	if err := ctx.Err(); err != nil && gate == nil {
		return record.Record{}, err
	}
	return sampleRecord(key, price), nil
}

func (f *fakeSource) FetchPrices(ctx context.Context, keys []record.Key) ([]record.PricePatch, error) {
	f.mu.Lock()
	idx := len(f.priceCalls)
	f.priceCalls = append(f.priceCalls, record.CloneKeys(keys))
	failErr := f.failBatch[idx]
	price := f.price
	hook := f.onPrices
	f.mu.Unlock()

	if hook != nil {
		hook(idx)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failErr != nil {
		return nil, failErr
	}

	out := make([]record.PricePatch, 0, len(keys))
	for _, k := range keys {
		out = append(out, record.PricePatch{Key: k, Quote: record.Quote{
			Price:  decimal.NewFromInt(price),
			Volume: price * 10,
			AsOf:   time.Now(),
		}})
	}
	return out, nil
}

func (f *fakeSource) FullCalls() []record.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	return record.CloneKeys(f.fullCalls)
}

func (f *fakeSource) PriceCalls() [][]record.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]record.Key, len(f.priceCalls))
	copy(out, f.priceCalls)
	return out
}

func (f *fakeSource) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

func sampleRecord(key record.Key, price int64) record.Record {
	pe := decimal.RequireFromString("28.5")
	return record.Record{
		Key: key,
		Quote: record.Quote{
			Price:  decimal.NewFromInt(price),
			Change: decimal.RequireFromString("1.25"),
			Volume: 1000,
		},
		Profile: record.Profile{Name: fmt.Sprintf("%s Corp", key), Exchange: "NASDAQ", Currency: "USD"},
		Fundamentals: record.Fundamentals{
			MarketCap: decimal.NewFromInt(1_000_000),
			PERatio:   &pe,
		},
		Analysis: record.Analysis{Recommendation: "buy", AnalystCount: 12},
		Statements: []record.FinancialStatement{
			{Period: "FY2025", Revenue: decimal.NewFromInt(5000), NetIncome: decimal.NewFromInt(900)},
		},
	}
}

func keys(symbols ...string) []record.Key {
	out := make([]record.Key, len(symbols))
	for i, s := range symbols {
		out[i] = record.Key(s)
	}
	return out
}

var errUpstream = fmt.Errorf("upstream: %w", source.ErrTransient)
