package mem

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)) on a 64-bit
	// target; the pointer size is (1 << PointerShift).
	PointerShift = 3

	// PageShift is equal to log2(PageSize). It converts a physical
	// address to a frame number (shift right by PageShift) and back.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)

	// MaxOrder is the number of buddy-allocator free-area orders, giving
	// a largest run of 2^(MaxOrder-1) contiguous pages (4 MiB at the
	// default 4 KiB page size).
	MaxOrder = 11
)

