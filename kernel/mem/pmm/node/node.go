// Package node implements the fallback-ordered grouping of zones described
// in section 4.C: a Node owns up to three zones (DMA, Normal, High) and
// precomputes, for every allocation-flag combination, the zonelist that
// alloc_pages walks when the zone implied by the request is exhausted.
package node

import (
	"talus/kernel/mem/pmm"
	"talus/kernel/mem/pmm/bootmem"
	"talus/kernel/mem/pmm/zone"
)

// gfpZonesBits is the width of the allocation-flag space build_zonelists
// indexes by; mirrors mm/page_alloc.c's GFP_ZONEMASK being 8 bits wide.
const gfpZonesBits = 8

// Node groups the zones carved out of one physically contiguous range and
// the precomputed zonelists used to satisfy an allocation request that
// would otherwise fail in its preferred zone.
type Node struct {
	id    uint16
	zones [zone.KindHigh + 1]*zone.Zone

	// zonelists[flags] is the fallback order to try for a request
	// carrying that flag combination, built once by BuildZonelists.
	zonelists [1 << gfpZonesBits][]*zone.Zone
}

// New returns an empty Node; call AddZone for each zone it owns and
// BuildZonelists once all zones are attached.
func New(id uint16) *Node {
	return &Node{id: id}
}

// ID returns the node's identifier.
func (n *Node) ID() uint16 { return n.id }

// AddZone attaches a zone of the given kind to the node. Only one zone per
// kind is supported, matching the DMA/Normal/High split in section 4.C.
func (n *Node) AddZone(z *zone.Zone) {
	n.zones[z.Kind()] = z
}

// Zone returns the node's zone of the given kind, or nil if it has none.
func (n *Node) Zone(k zone.Kind) *zone.Zone { return n.zones[k] }

// ZoneFlag selects which zone an allocation request should prefer, derived
// from the low bits of its GFP-style flag word (section 5, "Allocation
// flags"). It mirrors ZONE_DMA/ZONE_NORMAL/ZONE_HIGHMEM selection off
// GFP_DMA/GFP_HIGHMEM.
type ZoneFlag uint8

const (
	// FlagDMA requests memory from the DMA zone specifically.
	FlagDMA ZoneFlag = 1 << iota
	// FlagHighMem allows (but does not require) memory from the high
	// zone.
	FlagHighMem
)

// BuildZonelists precomputes, for every possible low-8-bits flag value, the
// fallback order of zones to try: the zone implied by the flags first, then
// progressively lower-capability zones, mirroring build_zonelists in
// mm/page_alloc.c. Call once after all of a node's zones are attached.
func (n *Node) BuildZonelists() {
	for flags := 0; flags < len(n.zonelists); flags++ {
		n.zonelists[flags] = n.fallbackOrder(ZoneFlag(flags))
	}
}

func (n *Node) fallbackOrder(flags ZoneFlag) []*zone.Zone {
	// Mirrors build_zonelists in mm/page_alloc.c: it starts from
	// ZONE_NORMAL, overrides to ZONE_HIGHMEM if the HIGHMEM bit is set,
	// then overrides again to ZONE_DMA if the DMA bit is set — so DMA
	// wins when both bits are present, not HIGHMEM.
	var order []zone.Kind
	switch {
	case flags&FlagDMA != 0:
		order = []zone.Kind{zone.KindDMA}
	case flags&FlagHighMem != 0:
		order = []zone.Kind{zone.KindHigh, zone.KindNormal, zone.KindDMA}
	default:
		order = []zone.Kind{zone.KindNormal, zone.KindDMA}
	}

	var zones []*zone.Zone
	for _, k := range order {
		if z := n.zones[k]; z != nil {
			zones = append(zones, z)
		}
	}
	return zones
}

// Zonelist returns the precomputed fallback order for the given flags.
// BuildZonelists must have been called first.
func (n *Node) Zonelist(flags ZoneFlag) []*zone.Zone {
	return n.zonelists[flags]
}

// InitFromBootmem hands every frame bootmem.FreeAll reports as free over to
// the zone that owns it, seeding the buddy free areas for the first time
// (section 6, "Boot-time handoff"). Regions must already have been sliced
// into per-zone Frame ranges by the caller via AddZone.
func (n *Node) InitFromBootmem(table *pmm.Table, alloc bootmem.Allocator) {
	alloc.FreeAll(func(f pmm.Frame) {
		if !table.Contains(f) {
			return
		}
		for _, z := range n.zones {
			if z == nil {
				continue
			}
			if z.Base() <= f && f < z.Base()+pmm.Frame(z.Size()) {
				z.Seed(f)
				return
			}
		}
	})
}
