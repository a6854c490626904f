package pmm

import "testing"

func TestTableDescriptorRoundTrip(t *testing.T) {
	tbl := NewTable(Frame(100), 16)

	if got, want := tbl.Len(), 16; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}

	if !tbl.Contains(Frame(100)) || !tbl.Contains(Frame(115)) {
		t.Fatal("expected frames 100 and 115 to be contained in the table")
	}
	if tbl.Contains(Frame(99)) || tbl.Contains(Frame(116)) {
		t.Fatal("expected frames 99 and 116 to fall outside the table")
	}

	d := tbl.Descriptor(Frame(105))
	if !d.HasFlags(FlagReserved) {
		t.Fatal("expected freshly created descriptors to start reserved")
	}

	d.ClearFlags(FlagReserved)
	if d.HasFlags(FlagReserved) {
		t.Fatal("expected FlagReserved to be cleared")
	}

	if got := tbl.FrameOf(d); got != Frame(105) {
		t.Fatalf("FrameOf() = %d, want 105", got)
	}
}

func TestDescriptorRefCounting(t *testing.T) {
	var d Descriptor

	d.SetRefCount(1)
	if got := d.IncRef(); got != 2 {
		t.Fatalf("IncRef() = %d, want 2", got)
	}
	if got := d.DecRef(); got != 1 {
		t.Fatalf("DecRef() = %d, want 1", got)
	}
	if got := d.DecRef(); got != 0 {
		t.Fatalf("DecRef() = %d, want 0", got)
	}
}

func TestDescriptorSlabOwner(t *testing.T) {
	var d Descriptor
	d.SetFlags(FlagSlab)
	d.SetSlabOwner(7, 42)

	if !d.HasFlags(FlagSlab) {
		t.Fatal("expected FlagSlab to be set")
	}
	if cacheID, slabID := d.SlabOwner(); cacheID != 7 || slabID != 42 {
		t.Fatalf("SlabOwner() = (%d, %d), want (7, 42)", cacheID, slabID)
	}
}

func TestDescriptorFreeLink(t *testing.T) {
	var d Descriptor
	d.SetFreeLink(3, -1, -1)

	order, prev, next := d.FreeLink()
	if order != 3 || prev != -1 || next != -1 {
		t.Fatalf("FreeLink() = (%d, %d, %d), want (3, -1, -1)", order, prev, next)
	}

	d.SetFreeNext(5)
	d.SetFreePrev(2)
	if _, prev, next := d.FreeLink(); prev != 2 || next != 5 {
		t.Fatalf("FreeLink() after rewrites = (%d, %d), want (2, 5)", prev, next)
	}
}
