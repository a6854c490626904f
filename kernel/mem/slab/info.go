package slab

import (
	"strconv"
	"strings"

	"talus/kernel"
)

// Info is one line of the slabinfo diagnostics surface (section 6,
// "diagnostics surface"): a snapshot of one cache's occupancy, sizing and
// per-CPU magazine tuning.
type Info struct {
	Name         string
	ActiveObjs   uint32
	TotalObjs    uint32
	ObjSize      uint32
	ActiveSlabs  int
	TotalSlabs   int
	PagesPerSlab uint32

	High   uint32
	Allocs uint64
	Grown  uint32
	Reaped uint32
	Errors uint32

	MagLimit      int
	MagBatchCount int
}

// Stat returns a point-in-time snapshot of c's counters and occupancy for
// the slabinfo report.
func (c *Cache) Stat() Info {
	c.lock.Acquire()
	defer c.lock.Release()

	info := Info{
		Name:         c.name,
		ObjSize:      c.objSize,
		ActiveSlabs:  len(c.full) + len(c.partial),
		TotalSlabs:   len(c.full) + len(c.partial) + len(c.empty),
		PagesPerSlab: 1 << c.order,
		High:         c.stats.high,
		Allocs:       c.stats.allocs,
		Grown:        c.stats.grown,
		Reaped:       c.stats.reaped,
		Errors:       c.stats.errors,
	}
	if len(c.mag) > 0 {
		info.MagLimit = c.mag[0].limit
		info.MagBatchCount = c.mag[0].batchCount
	}

	// The source recomputes num_objs per line by summing inuse across
	// every list and overwriting a running total rather than accumulating
	// it; replicated here rather than "fixed", per the design notes on
	// the slabinfo presentation bug (section 9, open questions).
	var total uint32
	for _, s := range c.full {
		total = s.inuse
	}
	for _, s := range c.partial {
		total = s.inuse
	}
	for range c.empty {
		total = 0
	}
	info.ActiveObjs = total
	info.TotalObjs = c.numObjs * uint32(info.TotalSlabs)

	return info
}

// SlabInfo renders the slabinfo text report across every registered cache,
// one line per cache, in the teacher's tab-separated column style.
func SlabInfo() string {
	var b strings.Builder
	b.WriteString("cache-name        active  total  objsize  active-slabs  total-slabs  pages-per-slab  <high> <allocs> <grown> <reaped> <errors>  <limit> <batchcount>\n")
	for _, c := range Caches() {
		s := c.Stat()
		b.WriteString(s.Name)
		b.WriteByte('\t')
		b.WriteString(strconv.FormatUint(uint64(s.ActiveObjs), 10))
		b.WriteByte('\t')
		b.WriteString(strconv.FormatUint(uint64(s.TotalObjs), 10))
		b.WriteByte('\t')
		b.WriteString(strconv.FormatUint(uint64(s.ObjSize), 10))
		b.WriteByte('\t')
		b.WriteString(strconv.Itoa(s.ActiveSlabs))
		b.WriteByte('\t')
		b.WriteString(strconv.Itoa(s.TotalSlabs))
		b.WriteByte('\t')
		b.WriteString(strconv.FormatUint(uint64(s.PagesPerSlab), 10))
		b.WriteByte('\t')
		b.WriteString(strconv.FormatUint(uint64(s.High), 10))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(s.Allocs, 10))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(uint64(s.Grown), 10))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(uint64(s.Reaped), 10))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(uint64(s.Errors), 10))
		b.WriteByte('\t')
		b.WriteString(strconv.Itoa(s.MagLimit))
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(s.MagBatchCount))
		b.WriteByte('\n')
	}
	return b.String()
}

// ErrTuningSyntax rejects a tuning-sink line that is not
// "<name> <limit> <batchcount>".
var ErrTuningSyntax = &kernel.Error{Module: "slab", Message: "malformed tuning line"}

// ErrUnknownCache rejects a tuning-sink line naming a cache that is not on
// the global chain.
var ErrUnknownCache = &kernel.Error{Module: "slab", Message: "no such cache"}

// TuneLine parses and applies one tuning-sink line of the form
// "<name> <limit> <batchcount>\n" (section 6, "diagnostics surface").
func TuneLine(line string) *kernel.Error {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return ErrTuningSyntax
	}
	limit, err1 := strconv.Atoi(fields[1])
	batch, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		return ErrTuningSyntax
	}
	c := Lookup(fields[0])
	if c == nil {
		return ErrUnknownCache
	}
	return c.Tune(limit, batch)
}
