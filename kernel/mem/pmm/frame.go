// Package pmm implements the data model shared by the buddy allocator and
// the slab layer: physical frame numbers, the frame descriptor table
// (component A) and the state bits every frame carries.
package pmm

import (
	"math"
	"talus/kernel/mem"
)

// Frame describes a physical memory page index.
type Frame uintptr

// InvalidFrame is returned by allocators when they fail to reserve a frame.
const InvalidFrame = Frame(math.MaxUint64)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of this frame's first byte.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}

// FrameFromAddress returns the frame housing the supplied physical address.
func FrameFromAddress(addr uintptr) Frame {
	return Frame(addr >> mem.PageShift)
}

// Flag is a single bit of per-frame state (section 3, "Frame descriptor").
type Flag uint32

const (
	// FlagReserved marks a frame as unavailable to the buddy allocator,
	// e.g. because it is occupied by the kernel image or a boot-time
	// allocation that has not yet been handed over.
	FlagReserved Flag = 1 << iota
	// FlagFree marks a frame as the head of a free buddy run currently
	// sitting on a zone free-area bucket; cleared the moment Rmqueue
	// hands the run out. Distinct from FlagReserved, which tracks
	// whether a frame has been handed to the buddy pool at all, not
	// whether it is currently allocated.
	FlagFree
	// FlagSlab marks a frame as backing a slab; Descriptor.SlabOwner is
	// valid for frames carrying this flag.
	FlagSlab
	// FlagLocked marks a frame as pinned (must not be reclaimed).
	FlagLocked
	// FlagReferenced marks a frame as recently accessed.
	FlagReferenced
	// FlagDirty marks a frame as holding modified data not yet
	// written back.
	FlagDirty
	// FlagActive marks a frame as being on the active list.
	FlagActive
	// FlagInactiveDirty marks a frame as inactive and dirty.
	FlagInactiveDirty
	// FlagInactiveClean marks a frame as inactive and clean; such frames
	// are the ones the buddy allocator's high-watermark phase can
	// reclaim directly (4.D, phase 2).
	FlagInactiveClean
	// FlagSwapCache marks a frame as present in the swap cache.
	FlagSwapCache
)
