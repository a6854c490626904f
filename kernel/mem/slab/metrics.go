package slab

import "github.com/prometheus/client_golang/prometheus"

// Collector exports the slabinfo counters of every registered cache as
// Prometheus metrics, mirroring the text report in SlabInfo() for
// consumers that prefer a scrape endpoint over the tuning-sink/diagnostics
// text surface (section 6, "diagnostics surface").
type Collector struct {
	activeObjs *prometheus.Desc
	totalObjs  *prometheus.Desc
	objSize    *prometheus.Desc
	allocs     *prometheus.Desc
	high       *prometheus.Desc
	grown      *prometheus.Desc
	reaped     *prometheus.Desc
	errors     *prometheus.Desc
}

// NewCollector returns a Collector ready to register with a
// prometheus.Registerer.
func NewCollector() *Collector {
	labels := []string{"cache"}
	return &Collector{
		activeObjs: prometheus.NewDesc("slab_cache_active_objects", "Objects currently allocated from this cache.", labels, nil),
		totalObjs:  prometheus.NewDesc("slab_cache_total_objects", "Objects this cache's slabs have capacity for.", labels, nil),
		objSize:    prometheus.NewDesc("slab_cache_object_size_bytes", "Per-object size after alignment.", labels, nil),
		allocs:     prometheus.NewDesc("slab_cache_allocs_total", "Objects allocated from this cache over its lifetime.", labels, nil),
		high:       prometheus.NewDesc("slab_cache_objects_high_watermark", "Highest simultaneous in-use object count observed.", labels, nil),
		grown:      prometheus.NewDesc("slab_cache_grown_total", "Times this cache has grown by one slab.", labels, nil),
		reaped:     prometheus.NewDesc("slab_cache_reaped_slabs_total", "Slabs this cache has given back to the page allocator via reap.", labels, nil),
		errors:     prometheus.NewDesc("slab_cache_errors_total", "Failures releasing a slab's backing pages.", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeObjs
	ch <- c.totalObjs
	ch <- c.objSize
	ch <- c.allocs
	ch <- c.high
	ch <- c.grown
	ch <- c.reaped
	ch <- c.errors
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, cache := range Caches() {
		s := cache.Stat()
		ch <- prometheus.MustNewConstMetric(c.activeObjs, prometheus.GaugeValue, float64(s.ActiveObjs), s.Name)
		ch <- prometheus.MustNewConstMetric(c.totalObjs, prometheus.GaugeValue, float64(s.TotalObjs), s.Name)
		ch <- prometheus.MustNewConstMetric(c.objSize, prometheus.GaugeValue, float64(s.ObjSize), s.Name)
		ch <- prometheus.MustNewConstMetric(c.allocs, prometheus.CounterValue, float64(s.Allocs), s.Name)
		ch <- prometheus.MustNewConstMetric(c.high, prometheus.GaugeValue, float64(s.High), s.Name)
		ch <- prometheus.MustNewConstMetric(c.grown, prometheus.CounterValue, float64(s.Grown), s.Name)
		ch <- prometheus.MustNewConstMetric(c.reaped, prometheus.CounterValue, float64(s.Reaped), s.Name)
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.Errors), s.Name)
	}
}
