package slab

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCollectorExportsActiveObjects(t *testing.T) {
	resetChain(t)
	a, tbl := newTestAllocator(t, 64)
	c, err := Create("metrics-active", 64, 0, nil, nil, a, tbl, nil)
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

	col := NewCollector()
	ch := make(chan prometheus.Metric, 16)
	col.Collect(ch)
	close(ch)

	var found bool
	for m := range ch {
		if !strings.Contains(m.Desc().String(), "slab_cache_active_objects") {
			continue
		}
		var pb dto.Metric
		if err := m.Write(&pb); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if pb.GetGauge().GetValue() != 1 {
			t.Fatalf("expected slab_cache_active_objects=1; got %v", pb.GetGauge().GetValue())
		}
		found = true
	}
	if !found {
		t.Fatal("expected the collector to export slab_cache_active_objects")
	}
}
