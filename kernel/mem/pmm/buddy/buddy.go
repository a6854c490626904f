// Package buddy implements the top-level allocator contract described in
// section 4.D: alloc_pages/free_pages and their convenience wrappers,
// built on top of a node's zones. The watermark ladder that alloc_pages
// walks is modeled as an explicit state machine (TryFast, TryHigh, TryLow,
// TryMin, ReclaimHighOrder, WaitKswapd, FinalScan, Fail) rather than the
// goto-based retry loop it is descended from.
package buddy

import (
	"talus/kernel"
	"talus/kernel/cpu"
	"talus/kernel/kfmt"
	"talus/kernel/mem/pmm"
	"talus/kernel/mem/pmm/hostmem"
	"talus/kernel/mem/pmm/node"
	"talus/kernel/mem/pmm/zone"
	"talus/kernel/reclaim"
)

// ErrExhausted is returned once every watermark-ladder phase has failed to
// produce a run of the requested order.
var ErrExhausted = &kernel.Error{Module: "buddy", Message: "no free pages of the requested order"}

// yieldFn is substituted by tests; in production it is cpu.Yield.
var yieldFn = cpu.Yield

// Allocator is the public entry point for page allocation: it binds a node
// (the set of zones to satisfy requests from) to a reclaim collaborator.
type Allocator struct {
	node    *node.Node
	reclaim reclaim.Reclaimer
	arena   *hostmem.Arena
}

// New returns an Allocator serving requests out of n, calling into r when
// the watermark ladder needs to reclaim. r may be reclaim.NoOp{} if no
// reclaim subsystem is wired up yet.
func New(n *node.Node, r reclaim.Reclaimer) *Allocator {
	return &Allocator{node: n, reclaim: r}
}

// SetArena binds the backing store GetZeroedPage clears; without one,
// GetZeroedPage behaves exactly like GetFreePage, since there is nothing
// to zero.
func (a *Allocator) SetArena(arena *hostmem.Arena) { a.arena = arena }

// state names the watermark-ladder phase alloc_pages is currently
// executing (section 9, "Goto-based retry ladder").
type state uint8

const (
	stateTryFast state = iota
	stateTryHigh
	stateTryLow
	stateTryMin
	stateReclaimHighOrder
	stateWaitKswapd
	stateFinalScan
	stateFail
)

// AllocPages satisfies a request for 2^order contiguous frames, walking the
// watermark ladder until one phase succeeds or FinalScan gives up.
func (a *Allocator) AllocPages(order uint8, flags Flags) (pmm.Frame, *kernel.Error) {
	zones := a.node.Zonelist(flags.zoneFlag())
	if len(zones) == 0 {
		return pmm.InvalidFrame, &kernel.Error{Module: "buddy", Message: "no zones configured for this allocation's flags"}
	}

	st := stateTryFast
	for {
		switch st {
		case stateTryFast:
			if f, ok := a.scanZones(zones, order, zone.WatermarkLow, true); ok {
				return f, nil
			}
			st = stateTryHigh

		case stateTryHigh:
			if f, ok := a.tryHighWatermark(zones, order, flags); ok {
				return f, nil
			}
			st = stateTryLow

		case stateTryLow:
			if flags.isKswapd() {
				a.reclaim.WakeupKswapd()
			}
			if f, ok := a.scanZones(zones, order, zone.WatermarkLow, false); ok {
				return f, nil
			}
			st = stateTryMin

		case stateTryMin:
			a.reclaim.WakeupKswapd()
			if flags.canWait() {
				yieldFn()
			}
			if f, ok := a.scanZones(zones, order, zone.WatermarkMin, false); ok {
				return f, nil
			}
			if !flags.canWait() {
				st = stateFail
				continue
			}
			st = stateReclaimHighOrder

		case stateReclaimHighOrder:
			if !flags.isRecursive() {
				for _, z := range zones {
					a.reclaim.PageLaunder(zoneIDOf(z.Kind()))
				}
				if f, ok := a.drainInactiveClean(zones, order); ok {
					return f, nil
				}
			}
			st = stateWaitKswapd

		case stateWaitKswapd:
			if flags.canWait() && flags.canDoIO() {
				a.reclaim.WakeupKswapd()
				if order == 0 {
					if f, ok := a.scanZones(zones, order, zone.WatermarkMin, false); ok {
						return f, nil
					}
				}
			}
			st = stateFinalScan

		case stateFinalScan:
			if f, ok := a.finalScan(zones, order, flags); ok {
				return f, nil
			}
			st = stateFail

		case stateFail:
			kfmt.Printf("buddy: alloc_pages(order=%d, flags=%x) failed\n", order, uint32(flags))
			return pmm.InvalidFrame, ErrExhausted
		}
	}
}

// zoneIDOf is a placeholder until zones carry a real numeric identifier the
// reclaim collaborator can key off of; Kind doubles as that identifier
// since this implementation keeps exactly one zone per kind per node.
func zoneIDOf(k zone.Kind) uint16 { return uint16(k) }

func (a *Allocator) scanZones(zones []*zone.Zone, order uint8, wm zone.Watermark, checkKswapd bool) (pmm.Frame, bool) {
	for _, z := range zones {
		if !z.WatermarkOK(wm) {
			continue
		}
		z.Lock()
		f, ok := z.Rmqueue(order)
		z.Unlock()
		if ok {
			return f, true
		}
		if checkKswapd && !z.WatermarkOK(zone.WatermarkMin) {
			a.reclaim.WakeupKswapd()
		}
	}
	return pmm.InvalidFrame, false
}

func (a *Allocator) tryHighWatermark(zones []*zone.Zone, order uint8, flags Flags) (pmm.Frame, bool) {
	for _, z := range zones {
		if z.FreePagesCount()+z.InactiveCleanCount() <= z.Watermark(zone.WatermarkHigh) {
			continue
		}
		z.Lock()
		f, ok := z.Rmqueue(order)
		z.Unlock()
		if ok {
			return f, true
		}
	}

	if order == 0 && flags.canWait() && !flags.isRecursive() {
		for _, z := range zones {
			if f, ok := a.reclaim.ReclaimPage(zoneIDOf(z.Kind())); ok {
				return f, true
			}
		}
	}
	return pmm.InvalidFrame, false
}

// drainInactiveClean walks every zone's laundered-page queue, folding each
// entry into the free areas via Release, then retries rmqueue (4.D, phase
// 4: "walk every zone's inactive-clean list, moving reclaimed pages to free
// and retrying rmqueue").
func (a *Allocator) drainInactiveClean(zones []*zone.Zone, order uint8) (pmm.Frame, bool) {
	for _, z := range zones {
		z.Lock()
		for {
			f, ok := z.TakeInactiveClean()
			if !ok {
				break
			}
			z.Release(f, 0)
		}
		f, ok := z.Rmqueue(order)
		z.Unlock()
		if ok {
			return f, true
		}
	}
	return pmm.InvalidFrame, false
}

// finalScan accepts pages down to pages_min/4, letting recursive allocators
// (flags.isRecursive) consume the last reserves (4.D, phase 5).
func (a *Allocator) finalScan(zones []*zone.Zone, order uint8, flags Flags) (pmm.Frame, bool) {
	for _, z := range zones {
		floor := z.Watermark(zone.WatermarkMin) / 4
		if !flags.isRecursive() && z.FreePagesCount() < floor {
			continue
		}
		z.Lock()
		f, ok := z.Rmqueue(order)
		z.Unlock()
		if ok {
			return f, true
		}
	}
	return pmm.InvalidFrame, false
}

// FreePages returns a run of 2^order frames to its owning zone. It is a
// no-op if the run's reference count does not reach zero, mirroring
// __free_pages in mm/page_alloc.c.
func (a *Allocator) FreePages(table *pmm.Table, frame pmm.Frame, order uint8) *kernel.Error {
	d := table.Descriptor(frame)
	if d.DecRef() != 0 {
		return nil
	}
	if d.HasFlags(pmm.FlagSlab) {
		return &kernel.Error{Module: "buddy", Message: "cannot free a frame still owned by the slab layer"}
	}

	z := a.node.Zone(zone.Kind(d.ZoneID()))
	if z == nil {
		return &kernel.Error{Module: "buddy", Message: "frame does not belong to a configured zone"}
	}
	z.Lock()
	z.Release(frame, order)
	z.Unlock()
	return nil
}

// GetFreePage is a convenience wrapper for AllocPages(0, flags).
func (a *Allocator) GetFreePage(flags Flags) (pmm.Frame, *kernel.Error) {
	return a.AllocPages(0, flags)
}

// GetZeroedPage is GetFreePage followed by clearing the returned page's
// backing store, when an Arena has been bound via SetArena.
func (a *Allocator) GetZeroedPage(flags Flags) (pmm.Frame, *kernel.Error) {
	f, err := a.AllocPages(0, flags)
	if err != nil {
		return f, err
	}
	if a.arena != nil {
		a.arena.Zero(f)
	}
	return f, nil
}
