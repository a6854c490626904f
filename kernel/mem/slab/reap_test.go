package slab

import "testing"

func TestReapSkipsJustGrownCaches(t *testing.T) {
	// End-to-end scenario 5: reap when every cache has just grown expects
	// no destruction, but DFLGS_GROWN clears on every visited cache.
	resetChain(t)
	a, tbl := newTestAllocator(t, 64)
	c, err := Create("reap-grown", 32, 0, nil, nil, a, tbl, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer func() {
		c.Shrink()
		c.Destroy()
	}()

	obj, err := c.AllocOne()
	if err != nil {
		t.Fatalf("AllocOne: %v", err)
	}
	c.FreeOne(obj)

	c.lock.Acquire()
	grownBefore := c.grown
	slabsBefore := len(c.empty)
	c.lock.Release()
	if !grownBefore {
		t.Fatal("expected grow() to have set the grown flag")
	}

	Reap(true)

	c.lock.Acquire()
	grownAfter := c.grown
	slabsAfter := len(c.empty)
	c.lock.Release()

	if grownAfter {
		t.Fatal("expected Reap to clear the grown flag on every visited cache")
	}
	if slabsAfter != slabsBefore {
		t.Fatalf("expected no slabs destroyed on a cache that had just grown; before=%d after=%d", slabsBefore, slabsAfter)
	}
}

func TestReapDestroysTrailingEmptySlabsOfBestCandidate(t *testing.T) {
	resetChain(t)
	a, tbl := newTestAllocator(t, 64)
	c, err := Create("reap-evict", 32, 0, nil, nil, a, tbl, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer func() {
		c.Shrink()
		c.Destroy()
	}()

	obj, err := c.AllocOne()
	if err != nil {
		t.Fatalf("AllocOne: %v", err)
	}
	c.FreeOne(obj)

	// Clear the one-shot grown exemption so this pass is eligible.
	c.lock.Acquire()
	c.grown = false
	before := len(c.empty)
	c.lock.Release()
	if before == 0 {
		t.Fatal("expected at least one empty slab to be a reap candidate")
	}

	Reap(true)

	c.lock.Acquire()
	after := len(c.empty)
	c.lock.Release()
	if after >= before {
		t.Fatalf("expected Reap to destroy at least one trailing empty slab; before=%d after=%d", before, after)
	}
}
