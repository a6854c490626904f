// Package zone implements the per-zone free-area bookkeeping described in
// section 4.B: one contiguous frame range sharing a single Kind, split into
// MaxOrder free-area buckets plus the buddy bitmaps used to detect when a
// released block can merge with its sibling. Allocation policy (the
// watermark ladder) lives one layer up, in the buddy package; Zone only
// exposes the primitives that policy is built from.
package zone

import (
	"talus/kernel/mem"
	"talus/kernel/mem/pmm"
	"talus/kernel/sync"

	"github.com/bits-and-blooms/bitset"
)

// Kind identifies what a zone's frames may be used for (4.B).
type Kind uint8

const (
	KindDMA Kind = iota
	KindNormal
	KindHigh

	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindDMA:
		return "DMA"
	case KindNormal:
		return "Normal"
	case KindHigh:
		return "High"
	default:
		return "unknown"
	}
}

// Watermark names one of the three free-page thresholds a zone tracks
// (4.B, "watermarks").
type Watermark uint8

const (
	WatermarkMin Watermark = iota
	WatermarkLow
	WatermarkHigh

	numWatermarks
)

// freeArea is one order's free-area bucket: a doubly linked list of
// zone-relative frame indices (the redesign's index-head/index-next ring,
// generalized to support O(1) unlink of an arbitrary buddy during merge)
// plus the bitmap recording, per buddy pair, whether exactly one half of
// the pair is free.
type freeArea struct {
	head   int32
	count  uint32
	bitmap *bitset.BitSet
}

// Zone is a contiguous, same-Kind frame range with its own free-area
// buckets, watermarks and lock (4.B).
type Zone struct {
	table *pmm.Table
	kind  Kind
	base  pmm.Frame
	size  uint32

	lock sync.Spinlock

	// freePages is read outside the lock by WatermarkOK and
	// FreePagesCount; a stale read is an accepted hint, not a
	// correctness bug (4.B, "reads for reporting need not hold the
	// lock").
	freePages uint32

	watermark [numWatermarks]uint32

	areas [mem.MaxOrder]freeArea

	// inactiveClean is the list of frames the reclaim collaborator has
	// already laundered; alloc_pages' reclaim-high-order phase
	// (drainInactiveClean) folds these into the free areas via Release,
	// while the high-watermark phase only counts them. It reuses the order-0 link fields with order
	// pinned to 0.
	inactiveClean    freeArea
	inactiveCleanCnt uint32
}

// New returns a Zone of the given kind; call Init before use. A frame's
// ZoneID descriptor field is set to this same kind value, since a node
// carries at most one zone per kind (4.B/4.C).
func New(kind Kind) *Zone {
	return &Zone{kind: kind}
}

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Init binds the zone to its backing table range and sizes its bitmaps and
// watermarks. Every frame in the range must already exist in table and
// starts out FlagReserved (as NewTable leaves it); frames only join a
// free-area bucket once Release is called on them, normally through Seed
// when node.InitFromBootmem replays bootmem.FreeAll.
//
// min is derived as size/balanceRatio, clamped to [minClamp, maxClamp]; low
// and high scale linearly off min, mirroring the 2.4 balance_ratio scheme
// from mm/page_alloc.c.
func (z *Zone) Init(table *pmm.Table, base pmm.Frame, size uint32, balanceRatio, minClamp, maxClamp uint32) {
	z.table = table
	z.base = base
	z.size = size

	min := clampU32(size/balanceRatio, minClamp, maxClamp)
	z.watermark[WatermarkMin] = min
	z.watermark[WatermarkLow] = min * 2
	z.watermark[WatermarkHigh] = min * 3

	for order := range z.areas {
		pairs := (size + uint32(1<<uint(order+1)) - 1) >> uint(order+1)
		z.areas[order] = freeArea{head: -1, bitmap: bitset.New(uint(pairs))}
	}
	z.inactiveClean = freeArea{head: -1}

	for i := uint32(0); i < size; i++ {
		table.Descriptor(base + pmm.Frame(i)).SetZoneID(uint16(z.kind))
	}
}

// Kind returns the zone's memory class.
func (z *Zone) Kind() Kind { return z.kind }

// Base returns the zone's first frame.
func (z *Zone) Base() pmm.Frame { return z.base }

// Size returns the number of frames in the zone.
func (z *Zone) Size() uint32 { return z.size }

// FreePagesCount reports the zone's free-page count. May be called without
// holding the lock; see the freePages field comment.
func (z *Zone) FreePagesCount() uint32 { return z.freePages }

// Watermark returns the threshold recorded for wm.
func (z *Zone) Watermark(wm Watermark) uint32 { return z.watermark[wm] }

// WatermarkOK reports whether the zone currently has at least wm's
// threshold of free pages. A hint read; see FreePagesCount.
func (z *Zone) WatermarkOK(wm Watermark) bool {
	return z.freePages >= z.watermark[wm]
}

// Lock acquires the zone spinlock. Exported so the buddy package can hold
// it across a multi-step rmqueue/expand or merge sequence.
func (z *Zone) Lock() { z.lock.Acquire() }

// Unlock releases the zone spinlock.
func (z *Zone) Unlock() { z.lock.Release() }

func (z *Zone) idx(f pmm.Frame) int32 { return int32(f - z.base) }

func (z *Zone) descAt(idx int32) *pmm.Descriptor {
	return z.table.Descriptor(z.base + pmm.Frame(idx))
}

// buddyOf returns the zone-relative index of idx's buddy at the given
// order.
func buddyOf(idx int32, order uint8) int32 {
	return idx ^ (1 << order)
}

// toggleBuddyBit flips the bit tracking whether exactly one half of the
// buddy pair containing idx, at the given order, is free (the bit is 1 iff
// exactly one half of the pair is currently free). It returns whether the
// bit is now 0, i.e. the pair is both free or both allocated. Release
// toggles on a free-direction transition, where a post-toggle bit of 0
// means the buddy was already free and the pair can merge; Rmqueue also
// toggles on allocation and ignores the result.
func (z *Zone) toggleBuddyBit(idx int32, order uint8) bool {
	pairIdx := uint(idx) >> (order + 1)
	z.areas[order].bitmap.Flip(pairIdx)
	return !z.areas[order].bitmap.Test(pairIdx)
}

// unlink removes idx from its current free-area bucket (must be its
// current order's bucket). Caller holds the zone lock.
func (z *Zone) unlink(area *freeArea, idx int32) {
	d := z.descAt(idx)
	_, prev, next := d.FreeLink()

	if prev == -1 {
		area.head = next
	} else {
		z.descAt(prev).SetFreeNext(next)
	}
	if next != -1 {
		z.descAt(next).SetFreePrev(prev)
	}
	area.count--
	d.ClearFlags(pmm.FlagFree)
}

// pushFront adds idx to the head of the given order's free-area bucket.
// Caller holds the zone lock.
func (z *Zone) pushFront(area *freeArea, order uint8, idx int32) {
	d := z.descAt(idx)
	d.SetFreeLink(order, -1, area.head)
	d.SetFlags(pmm.FlagFree)
	if area.head != -1 {
		z.descAt(area.head).SetFreePrev(idx)
	}
	area.head = idx
	area.count++
}

// popFront removes and returns the head of the given order's free-area
// bucket, or (-1, false) if empty. Caller holds the zone lock.
func (z *Zone) popFront(order uint8) (int32, bool) {
	area := &z.areas[order]
	if area.head == -1 {
		return -1, false
	}
	idx := area.head
	z.unlink(area, idx)
	return idx, true
}

// Rmqueue removes and returns one free run of the requested order, splitting
// a larger run if none of the exact order is available (4.D, rmqueue +
// expand). Caller holds the zone lock; ok is false if the zone has no run
// of order or larger.
func (z *Zone) Rmqueue(order uint8) (pmm.Frame, bool) {
	for o := order; int(o) < len(z.areas); o++ {
		idx, ok := z.popFront(o)
		if !ok {
			continue
		}

		z.toggleBuddyBit(idx, o)

		// expand: hand back unused halves to the lower-order buckets.
		for o > order {
			o--
			buddyIdx := idx + (1 << o)
			z.pushFront(&z.areas[o], o, buddyIdx)
			z.toggleBuddyBit(buddyIdx, o)
		}

		d := z.descAt(idx)
		d.SetRefCount(1)
		z.freePages -= 1 << order
		return z.base + pmm.Frame(idx), true
	}
	return pmm.InvalidFrame, false
}

// Release returns a run of 2^order frames starting at frame to the zone,
// merging with its buddy at each order as long as the buddy is itself fully
// free (4.D, __free_pages_ok). Caller holds the zone lock.
func (z *Zone) Release(frame pmm.Frame, order uint8) {
	idx := z.idx(frame)
	z.freePages += 1 << order

	for int(order) < len(z.areas)-1 {
		buddyIdx := buddyOf(idx, order)
		if buddyIdx < 0 || buddyIdx >= int32(z.size) {
			break
		}

		pairFree := z.toggleBuddyBit(idx, order)
		if !pairFree {
			// Our half was the only one free before this release;
			// nothing to merge with yet.
			break
		}

		buddyDesc := z.descAt(buddyIdx)
		buddyOrder, _, _ := buddyDesc.FreeLink()
		if !buddyDesc.HasFlags(pmm.FlagFree) || buddyOrder != order {
			// Buddy isn't a free run at this order (e.g. still
			// mid-split, or already merged into a higher order);
			// undo the bit flip and stop merging.
			z.toggleBuddyBit(idx, order)
			break
		}

		z.unlink(&z.areas[order], buddyIdx)
		if buddyIdx < idx {
			idx = buddyIdx
		}
		order++
	}

	z.pushFront(&z.areas[order], order, idx)
}

// AddInactiveClean records a frame the reclaim collaborator has laundered
// and handed back, without yet returning it to the free areas (4.D, phase
// 2). Caller holds the zone lock. This list is deliberately kept separate
// from the free-area buckets and does not set FlagFree: a queued frame is
// not yet a buddy-mergeable free run, just a candidate Release will
// promote one at a time.
func (z *Zone) AddInactiveClean(frame pmm.Frame) {
	idx := z.idx(frame)
	d := z.descAt(idx)
	d.SetFreeLink(0, -1, z.inactiveClean.head)
	if z.inactiveClean.head != -1 {
		z.descAt(z.inactiveClean.head).SetFreePrev(idx)
	}
	z.inactiveClean.head = idx
	z.inactiveCleanCnt++
}

// TakeInactiveClean removes and returns one previously laundered frame for
// alloc_pages' reclaim-high-order phase to fold into the free areas via
// Release, or ok=false if none are queued. Caller holds the zone lock.
func (z *Zone) TakeInactiveClean() (pmm.Frame, bool) {
	if z.inactiveClean.head == -1 {
		return pmm.InvalidFrame, false
	}
	idx := z.inactiveClean.head
	_, _, next := z.descAt(idx).FreeLink()
	z.inactiveClean.head = next
	if next != -1 {
		z.descAt(next).SetFreePrev(-1)
	}
	z.inactiveCleanCnt--
	return z.base + pmm.Frame(idx), true
}

// InactiveCleanCount reports how many laundered frames are queued.
func (z *Zone) InactiveCleanCount() uint32 { return z.inactiveCleanCnt }

// Seed clears frame's FlagReserved bit and releases it at order 0, merging
// it with free buddies exactly as Release does. Used once, during boot
// handoff, to populate a zone's free areas from bootmem.FreeAll's callback
// (4, "Boot-time handoff"); Release is used thereafter for steady-state
// frees.
func (z *Zone) Seed(frame pmm.Frame) {
	z.lock.Acquire()
	defer z.lock.Release()
	z.descAt(z.idx(frame)).ClearFlags(pmm.FlagReserved)
	z.Release(frame, 0)
}
