package bootmem

import (
	"talus/kernel/mem/pmm"
	"testing"
)

// Two available regions: [0 - 0x9fc00] (≈159 frames) and
// [0x100000 - 0x7fe0000] (≈32480 frames), mirroring a typical low-memory /
// extended-memory split.
func testRegions() []Region {
	return []Region{
		{Start: 0, Length: 0x9fc00, Available: true},
		{Start: 0xa0000, Length: 0x60000, Available: false},
		{Start: 0x100000, Length: 0x7fe0000 - 0x100000, Available: true},
	}
}

func TestAllocFrameSkipsReservedRange(t *testing.T) {
	alloc := New(testRegions())
	if err := alloc.Reserve(pmm.Frame(0), pmm.Frame(2)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	frame, err := alloc.AllocFrame()
	if err != nil {
		t.Fatalf("AllocFrame: %v", err)
	}
	if frame != pmm.Frame(3) {
		t.Fatalf("expected first allocation to skip the reserved range and return frame 3; got %d", frame)
	}
}

func TestAllocFrameExhaustion(t *testing.T) {
	alloc := New([]Region{{Start: 0, Length: uint64(4096 * 2), Available: true}})

	var got []pmm.Frame
	for {
		f, err := alloc.AllocFrame()
		if err != nil {
			if err != ErrOutOfMemory {
				t.Fatalf("unexpected error: %v", err)
			}
			break
		}
		got = append(got, f)
	}

	if len(got) != 2 {
		t.Fatalf("expected exactly 2 frames to be allocated; got %d", len(got))
	}
}

func TestFreeUnsupported(t *testing.T) {
	alloc := New(testRegions())
	if err := alloc.Free(pmm.Frame(0), pmm.Frame(1)); err != ErrFreeUnsupported {
		t.Fatalf("expected ErrFreeUnsupported; got %v", err)
	}
}

func TestFreeAllExcludesConsumedAndReservedFrames(t *testing.T) {
	alloc := New([]Region{{Start: 0, Length: uint64(4096 * 8), Available: true}})
	if err := alloc.Reserve(pmm.Frame(4), pmm.Frame(5)); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	// Consume frames 0, 1 and 2 for bootstrap bookkeeping (descriptor
	// table, bitmaps); 4 and 5 are permanently reserved for the kernel
	// image, so only 3, 6 and 7 should be handed to the buddy allocator.
	for i := 0; i < 3; i++ {
		if _, err := alloc.AllocFrame(); err != nil {
			t.Fatalf("AllocFrame: %v", err)
		}
	}

	var freed []pmm.Frame
	alloc.FreeAll(func(f pmm.Frame) { freed = append(freed, f) })

	want := []pmm.Frame{3, 6, 7}
	if len(freed) != len(want) {
		t.Fatalf("expected %v; got %v", want, freed)
	}
	for i, f := range want {
		if freed[i] != f {
			t.Fatalf("expected %v; got %v", want, freed)
		}
	}
}
