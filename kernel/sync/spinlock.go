// Package sync provides the synchronization primitives used by the
// allocator core: a busy-wait Spinlock for the zone and cache locks, and a
// Semaphore for the cache chain lock which is allowed to block.
package sync

import (
	"runtime"
	"sync/atomic"
)

var (
	// yieldFn is substituted by tests to avoid burning CPU while spinning.
	// In production it is runtime.Gosched, matching the "yield_hint"
	// capability the surrounding runtime is expected to provide rather
	// than baking a scheduling policy into the lock itself.
	yieldFn = runtime.Gosched

	// spinsBeforeYield bounds how long Acquire busy-waits before handing
	// control back to the scheduler.
	spinsBeforeYield = uint32(64)
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// until the lock becomes available. It backs the zone lock (4.B/4.D) and the
// cache lock (4.E/4.F), both of which are held for short, bounded spans.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will
// cause a deadlock.
func (l *Spinlock) Acquire() {
	var attempts uint32
	for !l.TryToAcquire() {
		attempts++
		if attempts >= spinsBeforeYield {
			attempts = 0
			if yieldFn != nil {
				yieldFn()
			}
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock
// could be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock, allowing other tasks to acquire it.
// Calling Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
