package slab

import (
	"talus/kernel"
	"talus/kernel/cpu"
)

// defaultMagazineSizing picks a magazine's initial (limit, batchcount) from
// the cache's object size: smaller objects get bigger magazines since more
// of them fit in the same cache-lock amortization budget.
func defaultMagazineSizing(objSize uint32) (limit, batchCount int) {
	switch {
	case objSize > 1024:
		limit = 60
	case objSize > 256:
		limit = 124
	default:
		limit = 252
	}
	return limit, limit / 2
}

// Magazine is a per-CPU LIFO stack of ready-to-use objects (section 4.F).
// A cache keeps one Magazine per logical CPU so the common alloc/free pair
// never touches the cache's spinlock or the global cache chain semaphore.
type Magazine struct {
	limit      int
	batchCount int
	objs       []*Object
}

// newMagazine returns an empty Magazine with the given capacity and refill
// batch size.
func newMagazine(limit, batchCount int) *Magazine {
	return &Magazine{
		limit:      limit,
		batchCount: batchCount,
		objs:       make([]*Object, 0, limit),
	}
}

// tune replaces the magazine's limit and batch count, discarding nothing:
// existing contents are kept even if they now exceed the new limit, and the
// next drain trims down to size. Mirrors kmem_tune_cpucache's ability to be
// called against a live, populated cache.
func (m *Magazine) tune(limit, batchCount int) {
	m.limit = limit
	m.batchCount = batchCount
}

// pop removes and returns the top object, or nil if the magazine is empty.
func (m *Magazine) pop() *Object {
	n := len(m.objs)
	if n == 0 {
		return nil
	}
	o := m.objs[n-1]
	m.objs = m.objs[:n-1]
	return o
}

// push adds obj to the top of the magazine. It does not check the limit;
// Cache.Free first flushes batchCount objects back to their slabs when the
// magazine is already full.
func (m *Magazine) push(obj *Object) {
	m.objs = append(m.objs, obj)
}

// full reports whether the magazine has no spare capacity.
func (m *Magazine) full() bool {
	return len(m.objs) >= m.limit
}

// cpuSlots returns how many per-CPU magazine slots a new cache should
// allocate, one per logical CPU the process is configured for.
func cpuSlots() int {
	return cpu.NumCPU()
}

// Alloc returns one object from c's per-CPU magazine, refilling in batches
// of m.batchCount straight from the cache's slab lists when the magazine
// the caller's CPU owns has run dry (section 4.F, "fast path").
func (c *Cache) Alloc() (*Object, *kernel.Error) {
	m := c.mag[cpu.ID()%len(c.mag)]
	if o := m.pop(); o != nil {
		return o, nil
	}
	for i := 0; i < m.batchCount; i++ {
		o, err := c.AllocOne()
		if err != nil {
			if i == 0 {
				return nil, err
			}
			break
		}
		m.push(o)
	}
	return m.pop(), nil
}

// Free returns obj to c's per-CPU magazine. On overflow, batchcount objects
// drain from the magazine back into their owning slabs under the cache
// lock before obj is pushed (section 4.F, "free").
func (c *Cache) Free(obj *Object) {
	m := c.mag[cpu.ID()%len(c.mag)]
	if m.full() {
		for i := 0; i < m.batchCount; i++ {
			o := m.pop()
			if o == nil {
				break
			}
			c.FreeOne(o)
		}
	}
	m.push(obj)
}

// drain empties m back into the cache's slab lists, used by Destroy and by
// Tune when replacing a magazine outright.
func (m *Magazine) drain(c *Cache) {
	for {
		o := m.pop()
		if o == nil {
			return
		}
		c.FreeOne(o)
	}
}

// ErrInvalidTune rejects a magazine retuning whose (limit, batchcount) pair
// violates 0 <= batchcount <= limit and limit > 0 => batchcount > 0
// (section 7, "policy rejection").
var ErrInvalidTune = &kernel.Error{Module: "slab", Message: "invalid magazine tuning parameters"}

// Tune replaces every per-CPU magazine's (limit, batchcount), draining each
// old magazine back into the cache's slab lists first so no object is lost
// in the swap (section 4.F, "tuning").
func (c *Cache) Tune(limit, batchCount int) *kernel.Error {
	if limit < 0 || batchCount < 0 || batchCount > limit || (limit > 0 && batchCount == 0) {
		return ErrInvalidTune
	}
	for i, m := range c.mag {
		m.drain(c)
		c.mag[i] = newMagazine(limit, batchCount)
	}
	return nil
}
