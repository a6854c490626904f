// Package cpu abstracts the per-CPU facilities the allocator core depends
// on: how many logical CPUs are available, a critical-section primitive
// standing in for local interrupt disable/enable, and a yield hint used by
// alloc_pages' __GFP_WAIT retry ladder.
package cpu

import (
	"runtime"
	"sync/atomic"
)

var (
	// numCPU caches the configured CPU count. Tests override it to
	// exercise multi-CPU fan-out (magazine population, zonelist replay)
	// deterministically without depending on the host's core count.
	numCPU int32
)

func init() {
	atomic.StoreInt32(&numCPU, int32(runtime.GOMAXPROCS(0)))
}

// NumCPU returns the number of logical CPUs the per-CPU magazine and
// statistics arrays are sized for.
func NumCPU() int {
	return int(atomic.LoadInt32(&numCPU))
}

// SetNumCPU overrides the value returned by NumCPU. It exists purely for
// tests that need to exercise a fixed topology.
func SetNumCPU(n int) {
	if n < 1 {
		n = 1
	}
	atomic.StoreInt32(&numCPU, int32(n))
}

// ID returns the index of the CPU the calling goroutine is currently
// considered to run on. Go does not expose true CPU affinity, so this is
// modeled as a slot derived from the calling goroutine's id, which keeps
// it stable for the lifetime of that goroutine; it is
// sufficient for the magazine layer, which only needs "the same caller
// keeps hitting the same per-CPU slot without cross-CPU ordering", not true
// hardware affinity.
func ID() int {
	return int(currentSlot()) % NumCPU()
}

// DisableInterrupts and EnableInterrupts bracket a critical section that, on
// bare metal, corresponds to the local interrupt disable guarding the zone
// and cache spinlocks (section 5). In a hosted process there is no
// interrupt controller to mask, so these pin the calling goroutine to its
// OS thread for the duration of the section. The Go scheduler can still
// preempt the goroutine inside the section.
func DisableInterrupts() {
	runtime.LockOSThread()
}

// EnableInterrupts ends a critical section started by DisableInterrupts.
func EnableInterrupts() {
	runtime.UnlockOSThread()
}

// Yield hands control back to the scheduler. It is the yield_hint()
// capability referenced by the design notes: the allocator's retry ladder
// calls it instead of encoding a scheduling policy of its own.
func Yield() {
	runtime.Gosched()
}
