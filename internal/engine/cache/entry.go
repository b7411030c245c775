package cache

import (
	"time"

	"github.com/rshade/finwatch/internal/record"
)

// CacheEntry represents a single cached record with its fetch metadata.
//
//nolint:revive // CacheEntry is the canonical name for this exported type.
type CacheEntry struct {
	// Record is the latest known data for the key.
	Record record.Record

	// FetchedAt is the last time any part of the record was written (full load or patch).
	FetchedAt time.Time

	// LoadedAt is the last time the whole record was fetched.
	LoadedAt time.Time
}

// NewCacheEntry creates an entry for a freshly fetched full record.
func NewCacheEntry(rec record.Record, now time.Time) CacheEntry {
	return CacheEntry{
		Record:    rec,
		FetchedAt: now,
		LoadedAt:  now,
	}
}

// Patched returns a copy of the entry with q merged into the volatile subset.
// LoadedAt is kept so a patch never makes a record look freshly loaded.
func (e CacheEntry) Patched(q record.Quote, now time.Time) CacheEntry {
	e.Record = e.Record.WithQuote(q)
	e.FetchedAt = now
	return e
}

// Age returns the duration since the entry was last written.
func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// LoadAge returns the duration since the whole record was fetched.
func (e CacheEntry) LoadAge(now time.Time) time.Duration {
	return now.Sub(e.LoadedAt)
}

// IsStale reports whether the full record is older than ttl.
// A non-positive ttl disables staleness.
func (e CacheEntry) IsStale(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return e.LoadAge(now) > ttl
}
