// Package simsource is a deterministic synthetic data source for demos and
// tests. Every key derives its profile and starting price from an FNV hash of
// the symbol; prices then follow a bounded random walk on each price fetch.
package simsource

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rshade/finwatch/internal/record"
	"github.com/rshade/finwatch/internal/source"
)

// Config configures the simulator.
type Config struct {
	// Latency is added to every call.
	Latency time.Duration
	// FailKeys always fail their full fetch.
	FailKeys []record.Key
	// Seed varies the random walk. Profiles depend on the symbol only.
	Seed uint64
}

type tape struct {
	prevClose decimal.Decimal
	quote     record.Quote
}

// Source is the simulated data source.
type Source struct {
	latency time.Duration
	fail    map[record.Key]struct{}

	mu    sync.Mutex
	rng   *rand.Rand
	tapes map[record.Key]*tape
	now   func() time.Time
}

var _ source.DataSource = (*Source)(nil)

// New creates a simulator.
func New(cfg Config) *Source {
	fail := make(map[record.Key]struct{}, len(cfg.FailKeys))
	for _, k := range cfg.FailKeys {
		fail[k] = struct{}{}
	}
	return &Source{
		latency: cfg.Latency,
		fail:    fail,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		tapes:   make(map[record.Key]*tape),
		now:     time.Now,
	}
}

// FetchFull returns the synthetic record for key.
func (s *Source) FetchFull(ctx context.Context, key record.Key) (record.Record, error) {
	if err := s.sleep(ctx); err != nil {
		return record.Record{}, err
	}
	if _, ok := s.fail[key]; ok {
		return record.Record{}, fmt.Errorf("simulated outage for %s: %w", key, source.ErrTransient)
	}

	s.mu.Lock()
	q := s.tapeLocked(key).quote
	s.mu.Unlock()

	return buildRecord(key, q), nil
}

// FetchPrices advances the random walk of every key and returns the new quotes.
func (s *Source) FetchPrices(ctx context.Context, keys []record.Key) ([]record.PricePatch, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]record.PricePatch, 0, len(keys))
	for _, k := range keys {
		t := s.tapeLocked(k)
		t.quote = s.stepLocked(t)
		out = append(out, record.PricePatch{Key: k, Quote: t.quote})
	}
	return out, nil
}

func (s *Source) sleep(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Source) tapeLocked(key record.Key) *tape {
	if t, ok := s.tapes[key]; ok {
		return t
	}
	h := hashKey(key)
	cents := 2000 + int64(h%48000)
	prev := decimal.New(cents, -2)
	t := &tape{
		prevClose: prev,
		quote: record.Quote{
			Price:   prev,
			DayHigh: prev,
			DayLow:  prev,
			Volume:  int64(h%900_000) + 100_000,
			AsOf:    s.now(),
		},
	}
	s.tapes[key] = t
	return t
}

// stepLocked moves the price by up to +/-1.5%.
func (s *Source) stepLocked(t *tape) record.Quote {
	bps := s.rng.Int64N(301) - 150
	price := t.quote.Price.Mul(decimal.New(10_000+bps, -4)).Round(2)
	if price.LessThan(decimal.New(1, -2)) {
		price = decimal.New(1, -2)
	}

	q := t.quote
	q.Price = price
	q.Change = price.Sub(t.prevClose)
	q.ChangePercent = q.Change.Div(t.prevClose).Mul(decimal.NewFromInt(100)).Round(2)
	q.Volume += s.rng.Int64N(5_000)
	q.AsOf = s.now()
	if price.GreaterThan(q.DayHigh) {
		q.DayHigh = price
	}
	if price.LessThan(q.DayLow) {
		q.DayLow = price
	}
	return q
}

func hashKey(key record.Key) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}
