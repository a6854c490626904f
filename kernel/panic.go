package kernel

import "talus/kernel/kfmt"

var (
	// haltFn is invoked by Panic once the failure has been logged. Tests
	// substitute it to avoid tearing down the test binary; production
	// wiring (cmd/slabctl) substitutes it with a process-exit hook since
	// there is no CPU halt instruction available outside of a freestanding
	// build.
	haltFn = func() {}

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// SetHaltFn overrides the function invoked once a panic has been reported.
// It exists so that callers embedding this module in a long-running process
// can decide what "halted" means for them (os.Exit, goroutine park, etc).
func SetHaltFn(fn func()) {
	if fn == nil {
		fn = func() {}
	}
	haltFn = fn
}

// Panic reports a programmer-fault style invariant violation: double frees,
// freeing a reserved page, slab metadata corruption and similar bugs are
// never recoverable, so Panic logs the failure and calls haltFn. Control
// returns to the caller only if haltFn returns, as the default no-op
// haltFn does.
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	kfmt.Printf("\n-----------------------------------\n")
	if err != nil {
		kfmt.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	kfmt.Printf("*** allocator core halted ***")
	kfmt.Printf("\n-----------------------------------\n")

	haltFn()
}
