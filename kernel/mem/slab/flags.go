// Package slab implements the object allocator layered on top of the
// buddy allocator (sections 4.E and 4.F): caches of same-sized objects
// backed by slabs of whole pages, plus a per-CPU magazine that absorbs the
// common alloc/free pair without touching the cache lock.
package slab

const (
	// wordSize is the alignment every object size is rounded up to.
	wordSize = 8
	// l1CacheBytes is the minimum cache-line alignment used for
	// HWCacheAlign caches and for colour striding.
	l1CacheBytes = 32
	// maxObjOrder bounds how large a single object may be: 2^maxObjOrder
	// pages (section 4.E, "create").
	maxObjOrder = 5
	// maxGFPOrder bounds how many pages a single slab may span.
	maxGFPOrder = 10
	// maxNameLen bounds a cache's name, matching CACHE_NAMELEN in
	// mm/slab.c.
	maxNameLen = 20
	// offSlabThreshold: caches whose object size reaches this fraction
	// of a page store their slab metadata off-slab instead of inline.
	offSlabThreshold = 8
	// bufctlEnd terminates a slab's free-object index chain.
	bufctlEnd = ^uint32(0)
	// reapScanLen bounds how many caches a single Reap call examines
	// before stopping, regardless of how many are registered.
	reapScanLen = 10
)

// Flags configures a Cache at creation time (section 4.E, "create").
type Flags uint32

const (
	// FlagHWCacheAlign rounds object size up to the cache line size,
	// trading memory for fewer false-sharing stalls between objects.
	FlagHWCacheAlign Flags = 1 << iota
	// FlagPoison fills freed objects with a sentinel byte pattern so
	// use-after-free shows up as a recognizable value instead of
	// whatever happened to be there.
	FlagPoison
	// FlagNoReap exempts a cache from the periodic/pressure-driven Reap
	// scan, for caches whose objects must never be speculatively
	// released.
	FlagNoReap
)

func alignUp(v, n uint32) uint32 {
	return (v + (n - 1)) &^ (n - 1)
}
