package sync

// Semaphore is a counting semaphore that may block its caller. It backs the
// cache chain semaphore (4.E/4.F, section 5): unlike Spinlock it is safe to
// hold across operations that may sleep (cache create/destroy/shrink/reap),
// and must never be acquired from interrupt context.
type Semaphore struct {
	tokens chan struct{}
}

// NewSemaphore returns a Semaphore initialized with the given number of
// available tokens. A binary mutex-like semaphore uses count == 1.
func NewSemaphore(count int) *Semaphore {
	if count <= 0 {
		count = 1
	}
	s := &Semaphore{tokens: make(chan struct{}, count)}
	for i := 0; i < count; i++ {
		s.tokens <- struct{}{}
	}
	return s
}

// Acquire blocks until a token is available.
func (s *Semaphore) Acquire() {
	<-s.tokens
}

// TryAcquire attempts to acquire a token without blocking. It returns false
// when the semaphore is fully held, which callers such as a non-waiting
// kmem_cache_reap pass treat as transient contention rather than an error.
func (s *Semaphore) TryAcquire() bool {
	select {
	case <-s.tokens:
		return true
	default:
		return false
	}
}

// Release returns a token to the semaphore.
func (s *Semaphore) Release() {
	select {
	case s.tokens <- struct{}{}:
	default:
		// Release without a matching Acquire; ignore rather than panic
		// since the semaphore is only ever used internally in matched pairs.
	}
}
