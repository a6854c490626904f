package pmm

import "sync/atomic"

// Descriptor is the per-frame metadata carried by the frame descriptor
// table (4.A). It carries two sets of link fields for two mutually
// exclusive owners, tagged by FlagSlab rather than by reinterpreting raw
// pointers: while free, the free-link fields form the buddy free-list link
// for whichever order the frame currently sits at; once handed to the slab
// layer, the slab-owner fields name the owning cache and slab instead. This mirrors the redesign notes'
// FramePayload sum type without resorting to pointer type-punning.
type Descriptor struct {
	flags    uint32
	refCount int32
	age      uint32
	zoneID   uint16
	virtAddr uintptr

	// order, freePrev and freeNext are valid while the frame sits on a
	// zone free-area or inactive-clean list (FlagSlab clear, FlagReserved
	// clear). The list is doubly linked so a buddy merge can unlink an
	// arbitrary frame, not just the bucket head, in O(1) (4.B/4.D).
	order    uint8
	freePrev int32
	freeNext int32

	// cacheID and slabID are valid once the frame has been claimed by a
	// slab (FlagSlab set); they are stable for the frame's lifetime
	// within that slab and may be read without locking from Free (3,
	// "Shared resources").
	cacheID uint32
	slabID  uint32
}

// Flags returns the full flag word.
func (d *Descriptor) Flags() uint32 { return atomic.LoadUint32(&d.flags) }

// HasFlags reports whether every bit in want is set.
func (d *Descriptor) HasFlags(want Flag) bool {
	return atomic.LoadUint32(&d.flags)&uint32(want) == uint32(want)
}

// SetFlags sets the given bits.
func (d *Descriptor) SetFlags(f Flag) {
	for {
		old := atomic.LoadUint32(&d.flags)
		if atomic.CompareAndSwapUint32(&d.flags, old, old|uint32(f)) {
			return
		}
	}
}

// ClearFlags clears the given bits.
func (d *Descriptor) ClearFlags(f Flag) {
	for {
		old := atomic.LoadUint32(&d.flags)
		if atomic.CompareAndSwapUint32(&d.flags, old, old&^uint32(f)) {
			return
		}
	}
}

// RefCount returns the current reference count.
func (d *Descriptor) RefCount() int32 { return atomic.LoadInt32(&d.refCount) }

// SetRefCount sets the reference count unconditionally; used by rmqueue to
// initialize a freshly split run to a ref count of 1.
func (d *Descriptor) SetRefCount(v int32) { atomic.StoreInt32(&d.refCount, v) }

// IncRef increments the reference count and returns the new value.
func (d *Descriptor) IncRef() int32 { return atomic.AddInt32(&d.refCount, 1) }

// DecRef decrements the reference count and returns the new value. Callers
// free the backing frame only when this reaches zero (4.D, __free_pages).
func (d *Descriptor) DecRef() int32 { return atomic.AddInt32(&d.refCount, -1) }

// Age returns the frame's age counter, used by the reclaim collaborator to
// pick eviction candidates; the allocator core never interprets it itself.
func (d *Descriptor) Age() uint32 { return atomic.LoadUint32(&d.age) }

// Touch bumps the age counter, marking the frame as recently used.
func (d *Descriptor) Touch() { atomic.AddUint32(&d.age, 1) }

// ZoneID returns the identifier of the owning zone.
func (d *Descriptor) ZoneID() uint16 { return d.zoneID }

// SetZoneID records the owning zone. Called once, at zone init time.
func (d *Descriptor) SetZoneID(id uint16) { d.zoneID = id }

// VirtAddr returns the direct-mapped virtual address for this frame, or 0
// for a high-memory frame that is not permanently mapped.
func (d *Descriptor) VirtAddr() uintptr { return d.virtAddr }

// SetVirtAddr records the direct-mapped virtual address for this frame.
func (d *Descriptor) SetVirtAddr(addr uintptr) { d.virtAddr = addr }

// FreeLink returns the order and free-list neighbours recorded for a free
// frame. It is only meaningful while FlagSlab and FlagReserved are both
// clear. -1 marks a missing neighbour (list head or tail).
func (d *Descriptor) FreeLink() (order uint8, prev, next int32) {
	return d.order, d.freePrev, d.freeNext
}

// SetFreeLink records this frame's buddy order and its neighbours within a
// zone free-area bucket or the inactive-clean list.
func (d *Descriptor) SetFreeLink(order uint8, prev, next int32) {
	d.order, d.freePrev, d.freeNext = order, prev, next
}

// SetFreeNext rewrites only the successor link, used when unlinking a
// neighbour without disturbing this frame's own order.
func (d *Descriptor) SetFreeNext(next int32) { d.freeNext = next }

// SetFreePrev rewrites only the predecessor link.
func (d *Descriptor) SetFreePrev(prev int32) { d.freePrev = prev }

// SlabOwner returns the cache and slab identifiers recorded by the slab
// layer when it claimed this frame. Valid only while FlagSlab is set.
func (d *Descriptor) SlabOwner() (cacheID, slabID uint32) {
	return d.cacheID, d.slabID
}

// SetSlabOwner records the owning cache and slab for a frame the slab layer
// has claimed from the buddy allocator via grow().
func (d *Descriptor) SetSlabOwner(cacheID, slabID uint32) {
	d.cacheID, d.slabID = cacheID, slabID
}
