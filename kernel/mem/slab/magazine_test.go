package slab

import "testing"

func TestMagazinePushPopIsLIFO(t *testing.T) {
	m := newMagazine(4, 2)
	a := &Object{index: 1}
	b := &Object{index: 2}
	m.push(a)
	m.push(b)

	if got := m.pop(); got != b {
		t.Fatalf("expected LIFO pop to return the most recently pushed object")
	}
	if got := m.pop(); got != a {
		t.Fatalf("expected the second pop to return the first object pushed")
	}
	if got := m.pop(); got != nil {
		t.Fatalf("expected a nil pop from an empty magazine; got %v", got)
	}
}

func TestMagazineFullRespectsLimit(t *testing.T) {
	m := newMagazine(2, 1)
	m.push(&Object{})
	if m.full() {
		t.Fatal("magazine with one of two slots used should not report full")
	}
	m.push(&Object{})
	if !m.full() {
		t.Fatal("magazine at its limit should report full")
	}
}

func TestCacheAllocFreeRepeatedLIFOYieldsSameObject(t *testing.T) {
	// Law: repeatedly allocating and freeing the same object in LIFO
	// order yields the identical pointer each time (magazine LIFO
	// property).
	a, tbl := newTestAllocator(t, 64)
	c, err := Create("lifo", 64, 0, nil, nil, a, tbl, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	obj, err := c.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	c.Free(obj)

	for i := 0; i < 10; i++ {
		next, err := c.Alloc()
		if err != nil {
			t.Fatalf("Alloc(%d): %v", i, err)
		}
		if next != obj {
			t.Fatalf("expected the identical object back from the magazine; got a different pointer on iteration %d", i)
		}
		c.Free(next)
	}
}

func TestTuneRejectsInvalidParameters(t *testing.T) {
	a, tbl := newTestAllocator(t, 64)
	c, err := Create("tune", 64, 0, nil, nil, a, tbl, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cases := []struct {
		limit, batch int
	}{
		{-1, 0},
		{10, -1},
		{10, 20},
		{10, 0},
	}
	for _, tc := range cases {
		if err := c.Tune(tc.limit, tc.batch); err != ErrInvalidTune {
			t.Fatalf("Tune(%d, %d): expected ErrInvalidTune; got %v", tc.limit, tc.batch, err)
		}
	}

	if err := c.Tune(10, 5); err != nil {
		t.Fatalf("Tune with valid parameters: %v", err)
	}
	if got := c.mag[0].limit; got != 10 {
		t.Fatalf("expected the magazine limit to update to 10; got %d", got)
	}
}
