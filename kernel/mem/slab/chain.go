package slab

import "talus/kernel/sync"

// chain is the global registry of every live Cache, guarded by a semaphore
// rather than a spinlock (section 4.E step 7: "cache chain semaphore...
// may sleep, never in interrupt context"). It does not reject duplicate
// cache names (see register); Lookup returns the earliest registered match.
// It also hands out the integer keys Descriptor.SetSlabOwner records in
// place of a raw *Cache pointer.
var chain = struct {
	sem    *sync.Semaphore
	caches []*Cache
	slabs  []*slabInstance
}{
	sem: sync.NewSemaphore(1),
}

// register adds c to the global chain. Duplicate names are a programmer
// error in the original (panic via BUG()); here they are silently tolerated
// since Create has already validated the name's shape and callers are
// expected to pick distinct names themselves.
func register(c *Cache) {
	chain.sem.Acquire()
	defer chain.sem.Release()
	chain.caches = append(chain.caches, c)
}

// unregister removes c from the global chain, used by Destroy.
func unregister(c *Cache) {
	chain.sem.Acquire()
	defer chain.sem.Release()
	for i, cand := range chain.caches {
		if cand == c {
			chain.caches = append(chain.caches[:i], chain.caches[i+1:]...)
			return
		}
	}
}

// Caches returns a snapshot of every registered cache, in creation order,
// for slabinfo-style reporting.
func Caches() []*Cache {
	chain.sem.Acquire()
	defer chain.sem.Release()
	out := make([]*Cache, len(chain.caches))
	copy(out, chain.caches)
	return out
}

// Lookup returns the registered cache with the given name, or nil.
func Lookup(name string) *Cache {
	chain.sem.Acquire()
	defer chain.sem.Release()
	for _, c := range chain.caches {
		if c.name == name {
			return c
		}
	}
	return nil
}

// registryIDFor assigns c its 1-based index into the chain's cache slice,
// appending c on first use. The id stays the same for repeated calls until
// a cache registered before c is unregistered, which shifts it down by one. The id is only ever consumed by
// Descriptor.SetSlabOwner/ZoneID-style bookkeeping, never dereferenced back
// into a pointer, so reusing the caches slice as the registry costs nothing
// extra.
func registryIDFor(c *Cache) uint32 {
	chain.sem.Acquire()
	defer chain.sem.Release()
	for i, cand := range chain.caches {
		if cand == c {
			return uint32(i + 1)
		}
	}
	chain.caches = append(chain.caches, c)
	return uint32(len(chain.caches))
}

// slabRegistryIDFor assigns s a stable 1-based index, mirroring
// registryIDFor for slabInstances.
func slabRegistryIDFor(s *slabInstance) uint32 {
	chain.sem.Acquire()
	defer chain.sem.Release()
	for i, cand := range chain.slabs {
		if cand == s {
			return uint32(i + 1)
		}
	}
	chain.slabs = append(chain.slabs, s)
	return uint32(len(chain.slabs))
}
