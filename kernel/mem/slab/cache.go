package slab

import (
	"talus/kernel"
	"talus/kernel/mem/pmm"
	"talus/kernel/mem/pmm/buddy"
	"talus/kernel/mem/pmm/hostmem"
	"talus/kernel/sync"
)

var (
	// ErrInvalidName rejects an empty or over-long cache name.
	ErrInvalidName = &kernel.Error{Module: "slab", Message: "invalid cache name"}
	// ErrInvalidSize rejects an object size outside [wordSize, 2^maxObjOrder*PageSize].
	ErrInvalidSize = &kernel.Error{Module: "slab", Message: "invalid object size"}
	// ErrDtorWithoutCtor rejects a destructor registered without a constructor.
	ErrDtorWithoutCtor = &kernel.Error{Module: "slab", Message: "destructor requires a constructor"}
	// ErrOOM is returned when growing a cache fails because the buddy
	// allocator could not supply a backing page run.
	ErrOOM = &kernel.Error{Module: "slab", Message: "out of memory growing cache"}
)

// Ctor initializes a freshly carved-out object; Dtor undoes that before the
// object's backing page is returned to the buddy allocator.
type Ctor func(obj []byte)
type Dtor func(obj []byte)

// Cache is a pool of same-sized, same-constructor objects carved out of
// whole pages obtained from the buddy allocator (section 4.E).
type Cache struct {
	name    string
	objSize uint32
	flags   Flags
	offSlab bool

	order     uint8
	numObjs   uint32
	colour    uint32
	colourOff uint32
	colourNxt uint32

	ctor Ctor
	dtor Dtor

	lock sync.Spinlock

	full    []*slabInstance
	partial []*slabInstance
	empty   []*slabInstance

	allocator  *buddy.Allocator
	table      *pmm.Table
	arena      *hostmem.Arena
	allocFlags buddy.Flags

	growing bool
	grown   bool // dflags.GROWN: set by grow, cleared by the next reap pass

	mag []*Magazine

	stats stats
}

// stats tracks the slabinfo counters (section 6, "diagnostics surface").
type stats struct {
	high   uint32 // high-water mark of objects in use
	allocs uint64
	grown  uint32
	reaped uint32
	errors uint32
}

// Create validates and builds a new Cache backed by allocator, registering
// it on the global cache chain (section 4.E, "create"). dtor may be nil;
// ctor may be nil only if dtor is also nil.
func Create(name string, size uint32, flags Flags, ctor Ctor, dtor Dtor, allocator *buddy.Allocator, table *pmm.Table, arena *hostmem.Arena) (*Cache, *kernel.Error) {
	if len(name) == 0 || len(name) > maxNameLen {
		return nil, ErrInvalidName
	}
	if size < wordSize || size > (uint32(1)<<maxObjOrder)*pageSize {
		return nil, ErrInvalidSize
	}
	if dtor != nil && ctor == nil {
		return nil, ErrDtorWithoutCtor
	}

	size = alignUp(size, wordSize)
	if flags&FlagHWCacheAlign != 0 {
		size = alignUp(size, l1CacheBytes)
	}

	c := &Cache{
		name:       name,
		objSize:    size,
		flags:      flags,
		offSlab:    size >= pageSize/offSlabThreshold,
		ctor:       ctor,
		dtor:       dtor,
		allocator:  allocator,
		table:      table,
		arena:      arena,
		allocFlags: buddy.FlagWait,
		mag:        make([]*Magazine, cpuSlots()),
	}
	magLimit, magBatch := defaultMagazineSizing(c.objSize)

	var (
		bestOrder          uint8
		bestObjs, bestLeft uint32
	)
	for order := uint8(0); order <= maxGFPOrder; order++ {
		header := slabHeaderBytes(c.offSlab)
		objs, left := estimate(order, size, header)
		if objs == 0 {
			continue
		}
		bestOrder, bestObjs, bestLeft = order, objs, left
		if left*offSlabThreshold <= (pageSize<<order) || (c.offSlab && objs > offslabLimit(size)) {
			break
		}
	}

	c.order, c.numObjs = bestOrder, bestObjs

	if c.offSlab && bestLeft >= slabHeaderBytes(true) {
		// section 4.E step 5: promote to on-slab when the leftover can
		// absorb the header after all.
		c.offSlab = false
		bestObjs, bestLeft = estimate(bestOrder, size, slabHeaderBytes(false))
		c.numObjs = bestObjs
	}

	colourOff := uint32(wordSize)
	if bestLeft >= l1CacheBytes {
		colourOff = l1CacheBytes
	}
	c.colourOff = colourOff
	if colourOff > 0 {
		c.colour = bestLeft / colourOff
	}
	if c.colour == 0 {
		c.colour = 1
	}

	for i := range c.mag {
		c.mag[i] = newMagazine(magLimit, magBatch)
	}

	register(c)
	return c, nil
}

// slabHeaderBytes models the in-band slabInstance bookkeeping overhead;
// off-slab caches pay nothing here since their header lives in ordinary Go
// allocations instead of sharing the object page run.
func slabHeaderBytes(offSlab bool) uint32 {
	if offSlab {
		return 0
	}
	return 48
}

// offslabLimit bounds how many objects an off-slab cache may pack into one
// slab before its external bufctl array becomes disproportionate to the
// objects it tracks.
func offslabLimit(size uint32) uint32 {
	return (pageSize - slabHeaderBytes(false)) / 2 / size
}

// Name returns the cache's registered name.
func (c *Cache) Name() string { return c.name }

// ObjSize returns the (rounded) per-object size.
func (c *Cache) ObjSize() uint32 { return c.objSize }

// NumObjs returns how many objects each slab carries.
func (c *Cache) NumObjs() uint32 { return c.numObjs }

// SetAllocFlags overrides the GFP-style flags forced on this cache's
// backing page allocations, e.g. buddy.FlagDMA for a size-N(DMA) cache.
func (c *Cache) SetAllocFlags(f buddy.Flags) {
	c.lock.Acquire()
	c.allocFlags = f
	c.lock.Release()
}

// nextColour returns this grow's colour offset and advances the cursor.
// Caller holds the lock.
func (c *Cache) nextColour() uint32 {
	off := c.colourNxt * c.colourOff
	c.colourNxt++
	if c.colourNxt >= c.colour {
		c.colourNxt = 0
	}
	return off
}

// grow obtains a fresh slab from the buddy allocator and links it into the
// empty list (section 4.E, "grow"). Called with the cache lock released,
// matching the original's "outside the cache lock" requirement so a
// concurrent alloc_pages -> reclaim recursion cannot deadlock against it.
func (c *Cache) grow() *kernel.Error {
	c.lock.Acquire()
	colourOff := c.nextColour()
	c.growing = true
	c.lock.Release()

	frame, err := c.allocator.AllocPages(c.order, c.allocFlags)
	if err != nil {
		c.lock.Acquire()
		c.growing = false
		c.lock.Release()
		return ErrOOM
	}

	var mem []byte
	if c.arena != nil {
		mem = c.arena.Pages(frame, 1<<c.order)
	} else {
		mem = make([]byte, uint32(1<<c.order)*pageSize)
	}

	s := &slabInstance{
		colourOff: colourOff,
		frameBase: frame.Address(),
		order:     c.order,
		bufctl:    make([]uint32, c.numObjs),
	}
	s.mem = mem[colourOff : colourOff+c.numObjs*c.objSize]

	for i := uint32(0); i < c.numObjs; i++ {
		if c.ctor != nil {
			c.ctor(s.object(i, c.objSize))
		}
		if i+1 < c.numObjs {
			s.bufctl[i] = i + 1
		} else {
			s.bufctl[i] = bufctlEnd
		}
	}
	s.free = 0
	if c.numObjs == 0 {
		s.free = bufctlEnd
	}

	ck, sk := cacheKey(c), slabKey(s)
	for i := 0; i < 1<<c.order; i++ {
		d := c.table.Descriptor(frame + pmm.Frame(i))
		d.SetSlabOwner(ck, sk)
		d.SetFlags(pmm.FlagSlab)
	}

	c.lock.Acquire()
	c.growing = false
	c.grown = true
	c.stats.grown++
	c.empty = append(c.empty, s)
	c.lock.Release()
	return nil
}

// recordAlloc updates the allocs counter and the inuse high-water mark.
// Caller holds the lock.
func (c *Cache) recordAlloc() {
	c.stats.allocs++
	inuse := uint32(0)
	for _, s := range c.full {
		inuse += s.inuse
	}
	for _, s := range c.partial {
		inuse += s.inuse
	}
	if inuse > c.stats.high {
		c.stats.high = inuse
	}
}

// allocFromSlab pops one free object from s, moving s between the
// full/partial/empty lists as its occupancy changes. Caller holds the lock
// and s must currently have a free object.
func (c *Cache) allocFromSlab(s *slabInstance) uint32 {
	idx := s.free
	s.free = s.bufctl[idx]
	s.inuse++
	return idx
}

// AllocOne bypasses the per-CPU magazine and returns a single object
// straight from the cache's slab lists, refilling from grow() as needed.
// Used by Magazine to perform a batch refill.
func (c *Cache) AllocOne() (*Object, *kernel.Error) {
	for {
		c.lock.Acquire()
		if s := popWithFree(&c.partial); s != nil {
			idx := c.allocFromSlab(s)
			if s.free == bufctlEnd {
				c.full = append(c.full, s)
			} else {
				c.partial = append(c.partial, s)
			}
			c.recordAlloc()
			c.lock.Release()
			return &Object{cache: c, slab: s, index: idx}, nil
		}
		if s := popWithFree(&c.empty); s != nil {
			idx := c.allocFromSlab(s)
			if s.free == bufctlEnd {
				c.full = append(c.full, s)
			} else {
				c.partial = append(c.partial, s)
			}
			c.recordAlloc()
			c.lock.Release()
			return &Object{cache: c, slab: s, index: idx}, nil
		}
		c.lock.Release()

		if err := c.grow(); err != nil {
			return nil, err
		}
	}
}

// FreeOne returns o's object to its slab's free chain, moving the slab
// between the full/partial/empty lists as needed, and runs the cache's
// destructor if one is registered.
func (c *Cache) FreeOne(o *Object) {
	if c.dtor != nil {
		c.dtor(o.Bytes())
	}
	if c.flags&FlagPoison != 0 {
		poison(o.Bytes())
	}

	c.lock.Acquire()
	defer c.lock.Release()

	s := o.slab
	wasFull := s.free == bufctlEnd
	s.bufctl[o.index] = s.free
	s.free = o.index
	s.inuse--

	if wasFull {
		moveSlab(&c.full, &c.partial, s)
	} else if s.inuse == 0 {
		moveSlab(&c.partial, &c.empty, s)
	}
}

func poison(b []byte) {
	for i := range b {
		b[i] = 0x6b
	}
}

// moveSlab relocates s from src to dst, matching it by pointer identity.
func moveSlab(src, dst *[]*slabInstance, s *slabInstance) {
	for i, cand := range *src {
		if cand == s {
			*src = append((*src)[:i], (*src)[i+1:]...)
			*dst = append(*dst, s)
			return
		}
	}
}

// Shrink detaches and destroys every fully-free slab trailing the empty
// list, unless the cache is currently growing (section 4.E, "shrink"). It
// returns the number of slabs released.
func (c *Cache) Shrink() int {
	c.lock.Acquire()
	defer c.lock.Release()
	return c.shrinkLocked(len(c.empty))
}

// shrinkLocked destroys up to max trailing slabs from c.empty. Caller holds
// the lock.
func (c *Cache) shrinkLocked(max int) int {
	if c.growing {
		return 0
	}
	n := 0
	for n < max && len(c.empty) > 0 {
		last := len(c.empty) - 1
		s := c.empty[last]
		c.empty = c.empty[:last]
		c.destroySlab(s)
		n++
	}
	return n
}

// destroySlab runs the destructor over every object, releases the backing
// pages to the buddy allocator, and clears each frame's slab ownership.
// Caller holds the cache lock.
func (c *Cache) destroySlab(s *slabInstance) {
	if c.dtor != nil {
		for i := uint32(0); i < c.numObjs; i++ {
			c.dtor(s.object(i, c.objSize))
		}
	}
	base := pmm.FrameFromAddress(s.frameBase)
	for i := 0; i < 1<<s.order; i++ {
		d := c.table.Descriptor(base + pmm.Frame(i))
		d.ClearFlags(pmm.FlagSlab)
		d.SetSlabOwner(0, 0)
	}
	if err := c.allocator.FreePages(c.table, base, s.order); err != nil {
		c.stats.errors++
	}
}

// ErrCacheNotEmpty is returned by Destroy when slabs remain after Shrink.
var ErrCacheNotEmpty = &kernel.Error{Module: "slab", Message: "cache has outstanding slabs"}

// Destroy drains every per-CPU magazine back into its slab lists, shrinks,
// and then unlinks the cache from the global chain. It refuses — leaving the
// cache registered — if slabs remain, mirroring the source's choice to
// return a soft error rather than force destruction of live objects
// (section 9, "destructor ordering").
func (c *Cache) Destroy() *kernel.Error {
	for _, m := range c.mag {
		m.drain(c)
	}
	c.Shrink()

	c.lock.Acquire()
	remaining := len(c.full) + len(c.partial) + len(c.empty)
	c.lock.Release()
	if remaining > 0 {
		return ErrCacheNotEmpty
	}
	unregister(c)
	return nil
}

// popWithFree removes and returns the first slab in list with a free
// object, or nil if none qualifies.
func popWithFree(list *[]*slabInstance) *slabInstance {
	for i, s := range *list {
		if s.free != bufctlEnd {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return s
		}
	}
	return nil
}

// cacheKey/slabKey give each Cache/slabInstance a small integer for
// Descriptor.SetSlabOwner to record, avoiding a raw pointer in per-frame
// metadata. Both are positions in the global registries in chain.go; a
// cache's key changes when a cache registered before it is unregistered.
func cacheKey(c *Cache) uint32 { return registryIDFor(c) }
func slabKey(s *slabInstance) uint32 { return slabRegistryIDFor(s) }
