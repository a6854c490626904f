package slab

import (
	"talus/kernel"
	"talus/kernel/mem/pmm"
	"talus/kernel/mem/pmm/buddy"
	"talus/kernel/mem/pmm/hostmem"
)

// kmallocSizes are the general-purpose cache sizes, size-32 through
// size-131072 (section 6, "standard general caches").
var kmallocSizes = []uint32{
	32, 64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768, 65536, 131072,
}

// generalCaches holds the non-DMA and DMA kmalloc cache families, indexed
// in parallel to kmallocSizes.
var generalCaches struct {
	plain []*Cache
	dma   []*Cache
}

// CreateGeneralCaches builds the size-N and size-N(DMA) caches kmalloc
// selects from (section 6, "standard general caches"). It is called once
// during boot after the buddy allocator is up.
func CreateGeneralCaches(allocator *buddy.Allocator, table *pmm.Table, arena *hostmem.Arena) *kernel.Error {
	generalCaches.plain = make([]*Cache, len(kmallocSizes))
	generalCaches.dma = make([]*Cache, len(kmallocSizes))

	for i, size := range kmallocSizes {
		plain, err := Create(generalCacheName(size, false), size, 0, nil, nil, allocator, table, arena)
		if err != nil {
			return err
		}
		generalCaches.plain[i] = plain

		dma, err := Create(generalCacheName(size, true), size, 0, nil, nil, allocator, table, arena)
		if err != nil {
			return err
		}
		dma.SetAllocFlags(buddy.FlagDMA | buddy.FlagWait)
		generalCaches.dma[i] = dma
	}
	return nil
}

func generalCacheName(size uint32, dma bool) string {
	name := "size-" + uitoa(size)
	if dma {
		name += "(DMA)"
	}
	return name
}

func uitoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// ErrNoGeneralCache is returned by Kmalloc when size exceeds the largest
// general-purpose cache.
var ErrNoGeneralCache = &kernel.Error{Module: "slab", Message: "no general cache large enough for requested size"}

// Kmalloc selects the smallest size-N cache with capacity >= size and
// allocates one object from it (section 6, "standard general caches").
// dma requests the size-N(DMA) family instead of the plain one.
func Kmalloc(size uint32, dma bool) (*Object, *kernel.Error) {
	for i, cs := range kmallocSizes {
		if cs < size {
			continue
		}
		c := generalCaches.plain[i]
		if dma {
			c = generalCaches.dma[i]
		}
		if c == nil {
			return nil, ErrNoGeneralCache
		}
		return c.Alloc()
	}
	return nil, ErrNoGeneralCache
}

// Kfree returns an object obtained from Kmalloc.
func Kfree(o *Object) {
	o.cache.Free(o)
}
