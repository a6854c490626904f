package buddy

import (
	"talus/kernel/mem/pmm"
	"talus/kernel/mem/pmm/node"
	"talus/kernel/mem/pmm/zone"
	"talus/kernel/reclaim"
	"testing"
)

func newTestAllocator(size uint32) (*Allocator, *pmm.Table, *node.Node) {
	tbl := pmm.NewTable(pmm.Frame(0), int(size))
	n := node.New(0)

	z := zone.New(zone.KindNormal)
	z.Init(tbl, pmm.Frame(0), size, 128, 1, 256)
	n.AddZone(z)
	n.BuildZonelists()

	for i := uint32(0); i < size; i++ {
		z.Seed(pmm.Frame(i))
	}

	return New(n, reclaim.NoOp{}), tbl, n
}

func TestAllocPagesFastPath(t *testing.T) {
	a, _, _ := newTestAllocator(16)

	f, err := a.AllocPages(0, FlagWait)
	if err != nil {
		t.Fatalf("AllocPages: %v", err)
	}
	if !f.Valid() {
		t.Fatal("expected a valid frame")
	}
}

func TestAllocPagesExhaustionFails(t *testing.T) {
	a, _, n := newTestAllocator(4)

	var got []pmm.Frame
	for i := 0; i < 4; i++ {
		f, err := a.AllocPages(0, FlagAtomic)
		if err != nil {
			t.Fatalf("AllocPages(%d): %v", i, err)
		}
		got = append(got, f)
	}

	if _, err := a.AllocPages(0, FlagAtomic); err != ErrExhausted {
		t.Fatalf("expected ErrExhausted once the zone is drained; got %v", err)
	}

	_ = n
	if len(got) != 4 {
		t.Fatalf("expected 4 successful allocations; got %d", len(got))
	}
}

func TestFreePagesRoundTrip(t *testing.T) {
	a, tbl, _ := newTestAllocator(4)

	f, err := a.AllocPages(0, FlagWait)
	if err != nil {
		t.Fatalf("AllocPages: %v", err)
	}

	if err := a.FreePages(tbl, f, 0); err != nil {
		t.Fatalf("FreePages: %v", err)
	}

	// The freed frame should be reachable again.
	f2, err := a.AllocPages(0, FlagWait)
	if err != nil {
		t.Fatalf("AllocPages after free: %v", err)
	}
	_ = f2
}

func TestAllocPagesSplitsHigherOrder(t *testing.T) {
	a, _, _ := newTestAllocator(8)

	f, err := a.AllocPages(1, FlagWait)
	if err != nil {
		t.Fatalf("AllocPages(order=1): %v", err)
	}
	if !f.Valid() {
		t.Fatal("expected a valid frame")
	}
}

func TestGetZeroedPageWithoutArenaBehavesLikeGetFreePage(t *testing.T) {
	a, _, _ := newTestAllocator(4)

	f, err := a.GetZeroedPage(FlagWait)
	if err != nil {
		t.Fatalf("GetZeroedPage: %v", err)
	}
	if !f.Valid() {
		t.Fatal("expected a valid frame")
	}
}
