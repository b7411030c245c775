package engine

import "sync"

// LoadGuard is the try-lock that allows at most one full load at a time.
// Acquisition never blocks or queues; callers that lose wait on Idle and
// try again.
type LoadGuard struct {
	lock chan struct{}

	// mu orders idle replacement with lock hand-offs.
	mu   sync.Mutex
	idle chan struct{}
}

// NewLoadGuard returns a released guard.
func NewLoadGuard() *LoadGuard {
	idle := make(chan struct{})
	close(idle)
	return &LoadGuard{lock: make(chan struct{}, 1), idle: idle}
}

// TryAcquire takes the guard if it is free.
func (g *LoadGuard) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case g.lock <- struct{}{}:
		g.idle = make(chan struct{})
		return true
	default:
		return false
	}
}

// Release frees the guard and wakes Idle waiters. Releasing a free guard is a no-op.
func (g *LoadGuard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-g.lock:
		close(g.idle)
	default:
	}
}

// Held reports whether a full load is running.
func (g *LoadGuard) Held() bool {
	return len(g.lock) == 1
}

// Idle returns a channel that is closed once the guard is free. It is already
// closed when the guard is free at call time.
func (g *LoadGuard) Idle() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.idle
}
