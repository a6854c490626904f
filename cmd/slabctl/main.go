// Command slabctl hosts the allocator core outside of a freestanding kernel
// build: it brings up the frame descriptor table, a single node's DMA and
// Normal zones, the buddy allocator and the standard kmalloc cache family
// over an mmap-backed arena, then exposes the slabinfo diagnostics surface
// and tuning sink over HTTP for operators and Prometheus alike.
package main

import (
	"net/http"
	"os"

	"talus/kernel"
	"talus/kernel/kfmt"
	"talus/kernel/mem"
	"talus/kernel/mem/pmm"
	"talus/kernel/mem/pmm/bootmem"
	"talus/kernel/mem/pmm/buddy"
	"talus/kernel/mem/pmm/hostmem"
	"talus/kernel/mem/pmm/node"
	"talus/kernel/mem/pmm/zone"
	"talus/kernel/mem/slab"
	"talus/kernel/reclaim"

	"github.com/pkg/errors"
	"github.com/povilasv/prommod"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	listenAddr = kingpin.Flag("web.listen-address", "Address to serve /metrics and /slabinfo on.").Default(":9402").String()
	tuneFile   = kingpin.Flag("tune-file", "Path to a file of \"<name> <limit> <batchcount>\" lines applied to the cache chain at startup.").String()
	totalPages = kingpin.Flag("arena.pages", "Number of simulated physical pages to back with an mmap arena.").Default("16384").Uint32()
	dmaPages   = kingpin.Flag("arena.dma-pages", "Number of the arena's leading pages reserved for the DMA zone.").Default("1024").Uint32()
)

func main() {
	kingpin.Version("slabctl 1.0")
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	kfmt.SetOutputSink(&kfmt.PrefixWriter{Sink: os.Stdout, Prefix: []byte("slabctl: ")})
	kernel.SetHaltFn(func() { os.Exit(1) })

	allocator, table, err := bootstrap(*totalPages, *dmaPages)
	if err != nil {
		kfmt.Printf("bootstrap failed: %s\n", err)
		os.Exit(1)
	}

	if err := slab.CreateGeneralCaches(allocator, table, nil); err != nil {
		kfmt.Printf("creating general caches failed: %s\n", err)
		os.Exit(1)
	}

	if *tuneFile != "" {
		if err := applyTuneFile(*tuneFile); err != nil {
			kfmt.Printf("tuning file: %s\n", err)
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(slab.NewCollector())
	registry.MustRegister(prommod.NewCollector("slabctl"))

	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	http.HandleFunc("/slabinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(slab.SlabInfo()))
	})

	kfmt.Printf("slabctl listening on %s\n", *listenAddr)
	if err := http.ListenAndServe(*listenAddr, nil); err != nil {
		kfmt.Printf("http server: %s\n", err)
		os.Exit(1)
	}
}

// bootstrap brings up a two-zone node (DMA, Normal) over an mmap arena of
// totalPages frames, the first dmaPages of which belong to the DMA zone,
// following the boot-time handoff sequence: build the descriptor table and
// the zones, then hand every arena frame to the buddy allocator via FreeAll
// (section 6, "Boot-time handoff"). No frame range is reserved for a kernel
// image.
func bootstrap(totalPages, dmaPages uint32) (*buddy.Allocator, *pmm.Table, error) {
	if dmaPages >= totalPages {
		return nil, nil, errors.New("arena.dma-pages must be smaller than arena.pages")
	}

	table := pmm.NewTable(pmm.Frame(0), int(totalPages))

	arena, kerr := hostmem.New(pmm.Frame(0), int(totalPages))
	if kerr != nil {
		return nil, nil, errors.Wrap(kerr, "mapping arena")
	}

	regions := []bootmem.Region{{
		Start:     0,
		Length:    uint64(totalPages) * uint64(mem.PageSize),
		Available: true,
	}}
	boot := bootmem.New(regions)

	n := node.New(0)
	dma := zone.New(zone.KindDMA)
	dma.Init(table, pmm.Frame(0), dmaPages, 128, 1, 256)
	n.AddZone(dma)

	normal := zone.New(zone.KindNormal)
	normal.Init(table, pmm.Frame(dmaPages), totalPages-dmaPages, 128, 1, 256)
	n.AddZone(normal)

	n.BuildZonelists()
	n.InitFromBootmem(table, boot)

	allocator := buddy.New(n, reclaim.NoOp{})
	allocator.SetArena(arena)
	return allocator, table, nil
}

// applyTuneFile reads tuneFile line by line and applies each as a tuning
// sink entry, stopping at the first malformed or unknown-cache line.
func applyTuneFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading tuning file")
	}
	for _, line := range splitLines(string(data)) {
		if line == "" {
			continue
		}
		if kerr := slab.TuneLine(line); kerr != nil {
			return errors.Wrapf(kerr, "applying tuning line %q", line)
		}
	}
	return nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
