package slab

import "testing"

func TestKmallocSelectsSmallestFittingCache(t *testing.T) {
	a, tbl := newTestAllocator(t, 4096)
	if err := CreateGeneralCaches(a, tbl, nil); err != nil {
		t.Fatalf("CreateGeneralCaches: %v", err)
	}

	cases := []struct {
		size uint32
		want string
	}{
		{100, "size-128"},
		{128, "size-128"},
		{129, "size-256"},
	}
	for _, tc := range cases {
		obj, err := Kmalloc(tc.size, false)
		if err != nil {
			t.Fatalf("Kmalloc(%d): %v", tc.size, err)
		}
		if obj.cache.Name() != tc.want {
			t.Fatalf("Kmalloc(%d): expected %s; got %s", tc.size, tc.want, obj.cache.Name())
		}
		Kfree(obj)
	}
}

func TestKmallocRejectsOversizedRequest(t *testing.T) {
	a, tbl := newTestAllocator(t, 4096)
	if err := CreateGeneralCaches(a, tbl, nil); err != nil {
		t.Fatalf("CreateGeneralCaches: %v", err)
	}

	if _, err := Kmalloc(1<<20, false); err != ErrNoGeneralCache {
		t.Fatalf("expected ErrNoGeneralCache for an oversized request; got %v", err)
	}
}
