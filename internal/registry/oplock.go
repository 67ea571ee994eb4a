package registry

import "sync"

// OpLock is the coarse "registry busy with scan/query" flag from spec.md
// §3 (GlobalLockFlag). It is deliberately distinct from the Registry's own
// mutex: OpLock serializes whole operations (a full scan, a full query)
// while the Registry mutex only ever guards a single table mutation, so
// short ops stay fast even while a scan is in flight.
type OpLock struct {
	mu  sync.Mutex
	cond *sync.Cond
	busy bool
}

// NewOpLock returns a ready-to-use OpLock.
func NewOpLock() *OpLock {
	l := &OpLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Acquire blocks until the flag is clear, then sets it. Unlike the
// original's busy-sleep-on-1s loop, this uses a condition variable so a
// waiter wakes immediately when Release is called instead of polling.
func (l *OpLock) Acquire() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for l.busy {
		l.cond.Wait()
	}
	l.busy = true
}

// Release clears the flag and wakes any waiters.
func (l *OpLock) Release() {
	l.mu.Lock()
	l.busy = false
	l.mu.Unlock()
	l.cond.Broadcast()
}
