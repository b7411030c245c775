// Package cache provides the in-memory record cache shared by the loader and refresher.
//
// The cache keeps the latest known Record per tracked Key. Key features:
//   - One entry per key; writes replace the entry atomically under a write lock
//   - Volatile-only patches that leave the stable subset untouched
//   - Fetch and full-load timestamps per entry for TTL staleness decisions
//   - Explicit eviction only; nothing expires on its own
//
// The cache is ephemeral. It lives as long as the engine that owns it and is
// never persisted.
package cache
