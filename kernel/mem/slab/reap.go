package slab

// reapCursor is the global scan position maintained across Reap calls
// (section "Reaping"): each call picks up where the last one left off
// instead of always starting at the front of the chain.
var reapCursor int

// candidate tracks the best-scoring cache seen so far in one Reap pass.
type candidate struct {
	cache     *Cache
	score     uint32
	freeTail  int
}

// Reap scans up to reapScanLen caches starting from the global cursor,
// skipping those flagged FlagNoReap, currently growing, or grown since the
// last pass. For each candidate it drains per-CPU magazines, scores it by
// how many pages its trailing empty slabs represent, and destroys 80% of
// the best candidate's trailing empty slabs. The cursor advances
// regardless of whether anything was destroyed.
//
// wait selects whether the chain semaphore is worth blocking for; when
// false and the semaphore is already held, Reap returns immediately
// (section 7, "transient contention" - not an error).
func Reap(wait bool) {
	if wait {
		chain.sem.Acquire()
	} else if !chain.sem.TryAcquire() {
		return
	}
	caches := make([]*Cache, len(chain.caches))
	copy(caches, chain.caches)
	chain.sem.Release()

	if len(caches) == 0 {
		return
	}

	var best candidate
	scanned := 0
	i := reapCursor % len(caches)
	for scanned < reapScanLen && scanned < len(caches) {
		c := caches[i]
		scanned++
		i = (i + 1) % len(caches)

		c.lock.Acquire()
		skip := c.flags&FlagNoReap != 0 || c.growing || c.grown
		c.grown = false
		c.lock.Release()
		if skip {
			continue
		}

		for _, m := range c.mag {
			m.drain(c)
		}

		c.lock.Acquire()
		freeTail := 0
		for j := len(c.empty) - 1; j >= 0; j-- {
			if c.empty[j].inuse != 0 {
				break
			}
			freeTail++
		}
		penalty := c.dtor != nil || c.order > 0
		c.lock.Release()

		score := uint32(freeTail) << c.order
		if penalty {
			score = score * 4 / 5
		}
		if score > best.score {
			best = candidate{cache: c, score: score, freeTail: freeTail}
		}
	}
	reapCursor = i

	if best.cache == nil || best.freeTail == 0 {
		return
	}
	toFree := best.freeTail * 4 / 5
	if toFree == 0 {
		toFree = 1
	}
	best.cache.lock.Acquire()
	freed := best.cache.shrinkLocked(toFree)
	best.cache.stats.reaped += uint32(freed)
	best.cache.lock.Release()
}
