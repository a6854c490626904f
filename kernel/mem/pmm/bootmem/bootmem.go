// Package bootmem implements the boot-time allocator that the zoned buddy
// allocator treats as an external collaborator (spec section 1, "Out of
// scope", and section 6, "Boot-time handoff"). It is a deliberately
// rudimentary bump allocator: single-threaded, no support for freeing
// individual frames, used only to reserve the handful of frames needed to
// bring the zoned allocator's own bookkeeping (descriptor table, per-order
// bitmaps) online. Once that bootstrap completes, callers invoke
// FreeAll to hand every remaining available frame to the buddy allocator
// and retire this allocator for good.
package bootmem

import (
	"talus/kernel"
	"talus/kernel/mem"
	"talus/kernel/mem/pmm"
)

// Region describes one entry of the platform-supplied memory map. It stands
// in for the boot-loader provided map (e.g. multiboot, e820) that this
// subsystem treats as an opaque input rather than something it parses
// itself.
type Region struct {
	Start     uintptr
	Length    uint64
	Available bool
}

// ErrOutOfMemory is returned once every available region has been consumed.
var ErrOutOfMemory = &kernel.Error{Module: "bootmem", Message: "out of memory"}

// ErrFreeUnsupported is returned by Free: a bump allocator, by construction,
// cannot reclaim an individual frame once handed out.
var ErrFreeUnsupported = &kernel.Error{Module: "bootmem", Message: "boot allocator does not support freeing individual frames"}

// Allocator is the surface the buddy core consumes while priming itself:
// AllocFrame for bootstrap allocations and FreeAll to release every
// remaining available frame once the zoned allocator is ready to take over.
type Allocator interface {
	AllocFrame() (pmm.Frame, *kernel.Error)
	Reserve(start, end pmm.Frame) *kernel.Error
	Free(start, end pmm.Frame) *kernel.Error
	FreeAll(onFree func(pmm.Frame))
}

// LinearAllocator walks the region list in order, handing out the next
// unreserved frame on every call. It tracks only a running frame cursor, not
// a bitmap, so Reserve must be called with monotonically non-decreasing
// ranges relative to prior allocations to behave as a boot-time caller
// expects (reserving the kernel image before the first AllocFrame call).
type LinearAllocator struct {
	regions []Region

	allocCount     uint64
	lastAllocFrame pmm.Frame

	reservedStart, reservedEnd pmm.Frame
	haveReserved               bool
}

// New creates a LinearAllocator over the supplied region list.
func New(regions []Region) *LinearAllocator {
	return &LinearAllocator{regions: regions}
}

// Reserve excludes the frame range [start, end] (inclusive) from future
// AllocFrame results, e.g. to carve out the frames occupied by the kernel
// image. Only a single reserved range is supported, matching the one boot
// image this allocator is meant to skip over.
func (a *LinearAllocator) Reserve(start, end pmm.Frame) *kernel.Error {
	a.reservedStart, a.reservedEnd, a.haveReserved = start, end, true
	return nil
}

// Free is unsupported by a bump allocator and always reports so.
func (a *LinearAllocator) Free(start, end pmm.Frame) *kernel.Error {
	return ErrFreeUnsupported
}

// AllocFrame scans the region list and reserves the next available frame,
// skipping the reserved range set via Reserve.
func (a *LinearAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	pageSizeMinus1 := uint64(mem.PageSize - 1)
	var (
		found bool
		out   pmm.Frame
	)

	for _, region := range a.regions {
		if !region.Available || region.Length < uint64(mem.PageSize) {
			continue
		}

		regionStart := pmm.Frame(((uint64(region.Start) + pageSizeMinus1) &^ pageSizeMinus1) >> mem.PageShift)
		regionEnd := pmm.Frame(((uint64(region.Start)+region.Length) &^ pageSizeMinus1)>>mem.PageShift) - 1

		if a.allocCount > 0 && a.lastAllocFrame >= regionEnd {
			continue
		}

		var next pmm.Frame
		switch {
		case a.haveReserved && a.lastAllocFrame <= regionStart && a.reservedStart == regionStart:
			next = a.reservedEnd + 1
		case a.haveReserved && a.lastAllocFrame <= regionEnd && a.lastAllocFrame+1 == a.reservedStart:
			next = a.reservedEnd + 1
		case a.allocCount == 0 || a.lastAllocFrame < regionStart:
			next = regionStart
		default:
			next = a.lastAllocFrame + 1
		}

		if next > regionEnd {
			continue
		}

		out, found = next, true
		break
	}

	if !found {
		return pmm.InvalidFrame, ErrOutOfMemory
	}

	a.lastAllocFrame = out
	a.allocCount++
	return out, nil
}

// FreeAll invokes onFree for every available frame this allocator never
// handed out via AllocFrame and that does not fall in the reserved (kernel
// image) range. This is how node.InitFromBootmem obtains the full set of
// frames to hand to its zones (section 6, "Boot-time handoff"): it
// assumes, as AllocFrame does, that regions are supplied in ascending
// physical-address order, so every frame at or before the last one
// allocated is already spoken for and must stay reserved forever.
func (a *LinearAllocator) FreeAll(onFree func(pmm.Frame)) {
	pageSizeMinus1 := uint64(mem.PageSize - 1)

	for _, region := range a.regions {
		if !region.Available || region.Length < uint64(mem.PageSize) {
			continue
		}

		regionStart := pmm.Frame(((uint64(region.Start) + pageSizeMinus1) &^ pageSizeMinus1) >> mem.PageShift)
		regionEnd := pmm.Frame(((uint64(region.Start)+region.Length) &^ pageSizeMinus1)>>mem.PageShift) - 1

		for f := regionStart; f <= regionEnd; f++ {
			if a.allocCount > 0 && f <= a.lastAllocFrame {
				continue
			}
			if a.haveReserved && f >= a.reservedStart && f <= a.reservedEnd {
				continue
			}
			onFree(f)
		}
	}
}
