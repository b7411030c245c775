// Package engine keeps a cache of instrument records in sync with an upstream
// data source for a changing set of tracked keys.
//
// An Engine owns one RecordCache and arbitrates between two loops:
//
//   - the FullLoader fetches complete records for missing keys one at a time,
//     and at most one full load runs at any moment (the LoadGuard)
//   - the PriceRefresher periodically patches only the volatile quote fields
//     of already-loaded keys in fixed-size batches, yielding to the loader
//
// Every change of the tracked set starts a new Epoch. Loops check their epoch
// before each unit of work and commit cache writes through it, so once an
// epoch is invalidated nothing it started can write to the cache.
package engine
