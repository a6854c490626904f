package slab

import "talus/kernel/mem"

const pageSize = uint32(mem.PageSize)

// slabInstance is one page-backed chunk of same-sized objects belonging to
// a Cache (section 4.E). Object storage and the free-object chain are kept
// as an index array rather than intrusive pointers, per the redesign notes:
// bufctl[i] names the next free object after object i, terminated by
// bufctlEnd, mirroring mm/slab.c's slab_t.free chain without resorting to
// pointer arithmetic into raw memory.
type slabInstance struct {
	inuse     uint32
	free      uint32 // index of the first free object, or bufctlEnd
	colourOff uint32
	mem       []byte // this slab's object storage, numObjs*objSize bytes
	bufctl    []uint32
	frameBase uintptr // first backing frame's address, used to free the pages when the slab is destroyed
	order     uint8
}

// object returns the i'th object's backing bytes.
func (s *slabInstance) object(i uint32, objSize uint32) []byte {
	off := i * objSize
	return s.mem[off : off+objSize]
}

// estimate computes how many size-byte objects fit in a 2^order page run
// and how many bytes are left over, mirroring kmem_cache_estimate's
// incremental scan in mm/slab.c. headerBytes is the in-band slab-header
// overhead (zero when the cache stores its metadata off-slab).
func estimate(order uint8, size uint32, headerBytes uint32) (numObjs, leftover uint32) {
	wastage := uint32(pageSize) << order

	const bufctlSize = 4
	var i uint32
	for {
		next := alignUp(headerBytes+(i+1)*bufctlSize, wordSize) + (i+1)*size
		if next > wastage {
			break
		}
		i++
	}

	numObjs = i
	used := alignUp(headerBytes+numObjs*bufctlSize, wordSize) + numObjs*size
	leftover = wastage - used
	return numObjs, leftover
}
