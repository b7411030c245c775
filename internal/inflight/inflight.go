// Package inflight tracks per-key requests that are currently running so a
// second request for the same key can be rejected until the first resolves.
package inflight

import (
	"errors"
	"sync"
)

// ErrAlreadyInFlight is returned by Do when the key is already being handled.
var ErrAlreadyInFlight = errors.New("request already in flight")

// Set is a concurrency-safe set of in-flight keys. The zero value is ready to use.
type Set[K comparable] struct {
	mu   sync.Mutex
	keys map[K]struct{}
}

// TryAcquire marks key in flight. It returns false if it already was.
func (s *Set[K]) TryAcquire(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys == nil {
		s.keys = make(map[K]struct{})
	}
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Release clears key. Releasing a key that is not in flight is a no-op.
func (s *Set[K]) Release(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}

// Has reports whether key is in flight.
func (s *Set[K]) Has(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of keys in flight.
func (s *Set[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Do runs fn while key is marked in flight. If key is already in flight fn is
// not called and ErrAlreadyInFlight is returned.
func (s *Set[K]) Do(key K, fn func() error) error {
	if !s.TryAcquire(key) {
		return ErrAlreadyInFlight
	}
	defer s.Release(key)
	return fn()
}
