package node

import (
	"talus/kernel/mem/pmm"
	"talus/kernel/mem/pmm/bootmem"
	"talus/kernel/mem/pmm/zone"
	"testing"
)

func newTestNode(dmaSize, normalSize uint32) (*Node, *pmm.Table) {
	total := dmaSize + normalSize
	tbl := pmm.NewTable(pmm.Frame(0), int(total))

	n := New(0)

	dma := zone.New(zone.KindDMA)
	dma.Init(tbl, pmm.Frame(0), dmaSize, 128, 1, 256)
	n.AddZone(dma)

	normal := zone.New(zone.KindNormal)
	normal.Init(tbl, pmm.Frame(dmaSize), normalSize, 128, 1, 256)
	n.AddZone(normal)

	n.BuildZonelists()
	return n, tbl
}

func TestZonelistDefaultOrder(t *testing.T) {
	n, _ := newTestNode(4, 12)

	zones := n.Zonelist(0)
	if len(zones) != 2 {
		t.Fatalf("expected 2 zones in the default fallback order; got %d", len(zones))
	}
	if zones[0].Kind() != zone.KindNormal || zones[1].Kind() != zone.KindDMA {
		t.Fatalf("expected [Normal, DMA]; got [%v, %v]", zones[0].Kind(), zones[1].Kind())
	}
}

func TestZonelistDMAOnly(t *testing.T) {
	n, _ := newTestNode(4, 12)

	zones := n.Zonelist(FlagDMA)
	if len(zones) != 1 || zones[0].Kind() != zone.KindDMA {
		t.Fatalf("expected [DMA] only; got %v", zones)
	}
}

func TestZonelistDMAWinsOverHighMemWhenBothSet(t *testing.T) {
	// build_zonelists in mm/page_alloc.c applies the DMA override after
	// the HIGHMEM override, so a request carrying both bits still only
	// gets the DMA zone.
	n, _ := newTestNode(4, 12)

	zones := n.Zonelist(FlagDMA | FlagHighMem)
	if len(zones) != 1 || zones[0].Kind() != zone.KindDMA {
		t.Fatalf("expected [DMA] only when both FlagDMA and FlagHighMem are set; got %v", zones)
	}
}

func TestZonelistSkipsAbsentZone(t *testing.T) {
	// A node with no high zone attached should simply omit it rather
	// than returning a nil entry.
	n, _ := newTestNode(4, 12)

	zones := n.Zonelist(FlagHighMem)
	for _, z := range zones {
		if z.Kind() == zone.KindHigh {
			t.Fatal("expected no High zone to be present in this node")
		}
	}
}

func TestInitFromBootmemSeedsOwningZone(t *testing.T) {
	n, tbl := newTestNode(4, 4)

	regions := []bootmem.Region{{Start: 0, Length: uint64(8 * 4096), Available: true}}
	alloc := bootmem.New(regions)
	n.InitFromBootmem(tbl, alloc)

	dma := n.Zone(zone.KindDMA)
	normal := n.Zone(zone.KindNormal)
	if dma.FreePagesCount() != 4 {
		t.Fatalf("expected DMA zone to receive 4 frames; got %d", dma.FreePagesCount())
	}
	if normal.FreePagesCount() != 4 {
		t.Fatalf("expected Normal zone to receive 4 frames; got %d", normal.FreePagesCount())
	}
}
