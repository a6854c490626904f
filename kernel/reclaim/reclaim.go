// Package reclaim declares the page-reclaim surface the buddy allocator
// calls into when watermarks run low. The reclaim subsystem itself -
// choosing eviction candidates, writing back dirty pages, waking the
// laundering daemon - is out of scope (spec section 1, "Out of scope");
// this package only defines the interface and a no-op implementation
// suitable for tests and for a system with reclaim not yet wired up.
package reclaim

import "talus/kernel/mem/pmm"

// Reclaimer is the collaborator alloc_pages consults once the fast path
// and direct zone scans fail to satisfy a request (section 4.D, phases
// "ReclaimHighOrder" and "WaitKswapd").
type Reclaimer interface {
	// ReclaimPage attempts to free a single inactive-clean page from the
	// given zone without blocking, returning ok=false if none is
	// available. Mirrors reclaim_page in mm/vmscan.c.
	ReclaimPage(zoneID uint16) (pmm.Frame, bool)

	// PageLaunder writes back one dirty inactive page for the given
	// zone so a subsequent ReclaimPage call might succeed; may block.
	// Mirrors page_launder.
	PageLaunder(zoneID uint16)

	// TryToFreePages asks the reclaim subsystem to make a best effort
	// pass over the active/inactive lists for the given zone, returning
	// whether it believes it made progress. Mirrors try_to_free_pages.
	TryToFreePages(zoneID uint16) bool

	// WakeupKswapd signals the background reclaim daemon to run
	// asynchronously; does not block the caller.
	WakeupKswapd()

	// WakeupBdflush signals the background writeback daemon, used when
	// an allocation is about to wait on dirty-page writeback.
	WakeupBdflush()
}

// NoOp is a Reclaimer that never finds anything to reclaim; useful as a
// default before a real reclaim subsystem is wired in, and in tests that
// only exercise the watermark ladder's failure path.
type NoOp struct{}

// ReclaimPage always reports nothing available.
func (NoOp) ReclaimPage(uint16) (pmm.Frame, bool) { return pmm.InvalidFrame, false }

// PageLaunder does nothing.
func (NoOp) PageLaunder(uint16) {}

// TryToFreePages always reports no progress.
func (NoOp) TryToFreePages(uint16) bool { return false }

// WakeupKswapd does nothing.
func (NoOp) WakeupKswapd() {}

// WakeupBdflush does nothing.
func (NoOp) WakeupBdflush() {}
