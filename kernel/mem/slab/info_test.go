package slab

import (
	"strings"
	"testing"
)

func TestSlabInfoListsRegisteredCaches(t *testing.T) {
	a, tbl := newTestAllocator(t, 64)
	c, err := Create("info-report", 64, 0, nil, nil, a, tbl, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer func() {
		c.Shrink()
		c.Destroy()
	}()

	if _, err := c.AllocOne(); err != nil {
		t.Fatalf("AllocOne: %v", err)
	}

	report := SlabInfo()
	if !strings.Contains(report, "info-report") {
		t.Fatalf("expected slabinfo report to mention the cache name; got:\n%s", report)
	}
}

func TestTuneLineAppliesValidLine(t *testing.T) {
	a, tbl := newTestAllocator(t, 64)
	c, err := Create("tune-line", 64, 0, nil, nil, a, tbl, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer func() {
		c.Shrink()
		c.Destroy()
	}()

	if err := TuneLine("tune-line 16 8\n"); err != nil {
		t.Fatalf("TuneLine: %v", err)
	}
	if got := c.mag[0].limit; got != 16 {
		t.Fatalf("expected the tuning line to set limit=16; got %d", got)
	}
}

func TestTuneLineRejectsMalformedInput(t *testing.T) {
	if err := TuneLine("not-enough-fields"); err != ErrTuningSyntax {
		t.Fatalf("expected ErrTuningSyntax; got %v", err)
	}
	if err := TuneLine("name notanumber 8"); err != ErrTuningSyntax {
		t.Fatalf("expected ErrTuningSyntax for a non-numeric field; got %v", err)
	}
}

func TestTuneLineRejectsUnknownCache(t *testing.T) {
	if err := TuneLine("no-such-cache 10 5"); err != ErrUnknownCache {
		t.Fatalf("expected ErrUnknownCache; got %v", err)
	}
}
