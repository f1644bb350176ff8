package indexer

import "sync/atomic"

// IndexLock guards against overlapping passes over the same store.
// TryAcquire never blocks: a second caller learns immediately that a pass is running.
type IndexLock struct {
	state atomic.Int32 // 0 = idle, 1 = pass running
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether a pass is running
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}
