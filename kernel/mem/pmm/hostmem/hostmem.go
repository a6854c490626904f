// Package hostmem supplies the byte-addressable backing store the buddy
// allocator's frame numbers are simulated over. On a real target these
// frame numbers would name physical RAM directly; running hosted, Arena
// mmaps one large anonymous region instead and lets callers index into it
// by frame number, which is what get_zeroed_page and the slab layer's
// object storage need underneath the metadata-only Descriptor/Table
// bookkeeping.
package hostmem

import (
	"talus/kernel"
	"talus/kernel/mem"
	"talus/kernel/mem/pmm"

	"golang.org/x/sys/unix"
)

// Arena is a flat mmap'd region treated as the backing store for a
// contiguous frame range starting at base.
type Arena struct {
	base  pmm.Frame
	bytes []byte
}

// New mmaps an anonymous, zero-filled region covering count frames
// starting at base.
func New(base pmm.Frame, count int) (*Arena, *kernel.Error) {
	size := count * int(mem.PageSize)
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, &kernel.Error{Module: "hostmem", Message: err.Error()}
	}
	return &Arena{base: base, bytes: b}, nil
}

// Close unmaps the arena's backing region.
func (a *Arena) Close() *kernel.Error {
	if err := unix.Munmap(a.bytes); err != nil {
		return &kernel.Error{Module: "hostmem", Message: err.Error()}
	}
	a.bytes = nil
	return nil
}

// Page returns the byte slice backing the given frame. Panics if frame
// falls outside the arena, mirroring Table.Descriptor's treatment of an
// out-of-range frame as a programmer fault.
func (a *Arena) Page(frame pmm.Frame) []byte {
	idx := int64(frame-a.base) * int64(mem.PageSize)
	return a.bytes[idx : idx+int64(mem.PageSize)]
}

// Pages returns the byte slice backing a contiguous run of count frames
// starting at frame. The run must lie entirely within the arena and, since
// the arena is one flat mmap, is guaranteed contiguous in memory - the same
// guarantee the buddy allocator gives for the runs it hands out.
func (a *Arena) Pages(frame pmm.Frame, count int) []byte {
	start := int64(frame-a.base) * int64(mem.PageSize)
	end := start + int64(count)*int64(mem.PageSize)
	return a.bytes[start:end]
}

// Zero clears the given frame's backing page.
func (a *Arena) Zero(frame pmm.Frame) {
	page := a.Page(frame)
	for i := range page {
		page[i] = 0
	}
}
