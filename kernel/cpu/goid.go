package cpu

import (
	"bytes"
	"runtime"
	"strconv"
)

// currentSlot derives a stable per-goroutine slot number by parsing the
// "goroutine NNN [...]" header that runtime.Stack always emits first. Go
// does not expose a true affinity API, so this stands in for "the core the
// caller is pinned to": the same goroutine always lands on the same slot,
// which is all the per-CPU magazine layer actually relies on.
func currentSlot() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = "goroutine "
	if idx := bytes.Index(b, []byte(prefix)); idx >= 0 {
		b = b[idx+len(prefix):]
		if sp := bytes.IndexByte(b, ' '); sp >= 0 {
			b = b[:sp]
		}
		if id, err := strconv.ParseUint(string(b), 10, 64); err == nil {
			return id
		}
	}
	return 0
}
