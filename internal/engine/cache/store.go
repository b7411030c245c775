package cache

import (
	"sync"
	"time"

	"github.com/rshade/finwatch/internal/record"
)

// Store is the in-memory record cache. It is safe for concurrent use; every
// write replaces a whole entry under the write lock so readers never observe
// a partially written record.
type Store struct {
	// entries holds one entry per key.
	entries map[record.Key]CacheEntry

	// now is the clock used for timestamps.
	now func() time.Time

	// mu protects entries.
	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty cache.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[record.Key]CacheEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached record for key.
func (s *Store) Get(key record.Key) (record.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	return e.Record, ok
}

// Entry returns the full cache entry for key, including timestamps.
func (s *Store) Entry(key record.Key) (CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	return e, ok
}

// Set replaces the whole entry for key with a freshly loaded record.
func (s *Store) Set(key record.Key, rec record.Record) {
	rec.Key = key

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = NewCacheEntry(rec, s.now())
}

// PatchVolatile merges q into the volatile subset of the cached record for key
// and bumps its FetchedAt. Fields q leaves zero keep their cached value. It is a no-op returning false when key is absent.
func (s *Store) PatchVolatile(key record.Key, q record.Quote) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	s.entries[key] = e.Patched(q, s.now())
	return true
}

// Has reports whether key has an entry.
func (s *Store) Has(key record.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[key]
	return ok
}

// Evict removes the entries for keys and returns how many were present.
func (s *Store) Evict(keys []record.Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, k := range keys {
		if _, ok := s.entries[k]; ok {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Snapshot returns the cached records for keys in the given order, skipping
// keys without an entry.
func (s *Store) Snapshot(keys []record.Key) []record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.Record, 0, len(keys))
	for _, k := range keys {
		if e, ok := s.entries[k]; ok {
			out = append(out, e.Record)
		}
	}
	return out
}

// Present returns the subset of keys that have an entry, in the given order.
func (s *Store) Present(keys []record.Key) []record.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := s.entries[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// CountPresent returns how many of keys have an entry.
func (s *Store) CountPresent(keys []record.Key) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, k := range keys {
		if _, ok := s.entries[k]; ok {
			n++
		}
	}
	return n
}

// Missing returns the keys that need a full fetch, in the given order: keys
// without an entry, and keys whose full record is older than ttl.
// A non-positive ttl only reports absent keys.
func (s *Store) Missing(keys []record.Key, ttl time.Duration) []record.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	out := make([]record.Key, 0, len(keys))
	for _, k := range keys {
		e, ok := s.entries[k]
		if !ok || e.IsStale(now, ttl) {
			out = append(out, k)
		}
	}
	return out
}
