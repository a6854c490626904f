// Package kernel contains the small set of types shared across every layer
// of the memory-management core: the error type returned by allocators and
// caches, and the panic path used to report invariant violations.
package kernel

// Error describes a failure reported by an allocator or cache. Errors are
// defined as package-level *Error values so that reporting a failure never
// requires a heap allocation on the hot allocation path.
type Error struct {
	// Module names the subsystem that raised the error (e.g. "buddy",
	// "slab", "bootmem").
	Module string

	// Message is a short, human readable description of the failure.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "[" + e.Module + "] " + e.Message
}
