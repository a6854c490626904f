package zone

import (
	"talus/kernel/mem/pmm"
	"testing"
)

func newTestZone(size uint32) (*Zone, *pmm.Table) {
	tbl := pmm.NewTable(pmm.Frame(0), int(size))
	z := New(KindNormal)
	z.Init(tbl, pmm.Frame(0), size, 128, 1, 256)
	return z, tbl
}

func TestInitWatermarks(t *testing.T) {
	z, _ := newTestZone(1024)

	if got := z.Watermark(WatermarkMin); got != 8 {
		t.Fatalf("min watermark = %d, want 8 (1024/128)", got)
	}
	if got := z.Watermark(WatermarkLow); got != 16 {
		t.Fatalf("low watermark = %d, want 16", got)
	}
	if got := z.Watermark(WatermarkHigh); got != 24 {
		t.Fatalf("high watermark = %d, want 24", got)
	}
}

func TestSeedAndRmqueueRoundTrip(t *testing.T) {
	z, _ := newTestZone(4)
	for i := uint32(0); i < 4; i++ {
		z.Seed(pmm.Frame(i))
	}

	if got, want := z.FreePagesCount(), uint32(4); got != want {
		t.Fatalf("FreePagesCount() = %d, want %d", got, want)
	}

	z.Lock()
	frame, ok := z.Rmqueue(0)
	z.Unlock()
	if !ok {
		t.Fatal("expected Rmqueue to succeed")
	}
	if got, want := z.FreePagesCount(), uint32(3); got != want {
		t.Fatalf("FreePagesCount() after Rmqueue = %d, want %d", got, want)
	}
	_ = frame
}

func TestRmqueueSplitsLargerRun(t *testing.T) {
	z, _ := newTestZone(8)
	// Seeding frames 0..7 one at a time lets Release's merge logic walk
	// them all the way up to a single order-3 run, since every buddy it
	// needs is already free by the time it gets there.
	for i := uint32(0); i < 8; i++ {
		z.Seed(pmm.Frame(i))
	}

	z.Lock()
	frame, ok := z.Rmqueue(1)
	z.Unlock()
	if !ok {
		t.Fatal("expected Rmqueue(1) to succeed by splitting the order-3 run")
	}
	if frame != pmm.Frame(0) {
		t.Fatalf("expected split to hand back frame 0; got %d", frame)
	}
	if got, want := z.FreePagesCount(), uint32(6); got != want {
		t.Fatalf("FreePagesCount() = %d, want %d", got, want)
	}
}

func TestRmqueueExhaustion(t *testing.T) {
	z, _ := newTestZone(2)
	z.Seed(pmm.Frame(0))
	z.Seed(pmm.Frame(1))

	z.Lock()
	defer z.Unlock()

	for i := 0; i < 2; i++ {
		if _, ok := z.Rmqueue(0); !ok {
			t.Fatalf("expected allocation %d to succeed", i)
		}
	}
	if _, ok := z.Rmqueue(0); ok {
		t.Fatal("expected zone to be exhausted")
	}
}

func TestReleaseMergesBuddies(t *testing.T) {
	z, _ := newTestZone(2)
	z.Seed(pmm.Frame(0))
	z.Seed(pmm.Frame(1))

	z.Lock()
	if got, want := z.areas[1].count, uint32(1); got != want {
		t.Fatalf("expected frames 0 and 1 to have merged into a single order-1 run; area[1].count = %d, want %d", got, want)
	}
	if got := z.areas[0].count; got != 0 {
		t.Fatalf("expected no leftover order-0 runs after merge; got %d", got)
	}
	z.Unlock()
}

func TestInactiveCleanQueue(t *testing.T) {
	z, _ := newTestZone(4)
	z.Lock()
	z.AddInactiveClean(pmm.Frame(2))
	if got := z.InactiveCleanCount(); got != 1 {
		t.Fatalf("InactiveCleanCount() = %d, want 1", got)
	}
	frame, ok := z.TakeInactiveClean()
	z.Unlock()
	if !ok || frame != pmm.Frame(2) {
		t.Fatalf("TakeInactiveClean() = (%d, %v), want (2, true)", frame, ok)
	}
	if got := z.InactiveCleanCount(); got != 0 {
		t.Fatalf("InactiveCleanCount() after Take = %d, want 0", got)
	}
}
