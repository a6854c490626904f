package sync

import "testing"

func TestSemaphore(t *testing.T) {
	sem := NewSemaphore(1)

	if !sem.TryAcquire() {
		t.Fatal("expected first TryAcquire to succeed")
	}

	if sem.TryAcquire() {
		t.Fatal("expected second TryAcquire to fail while token is held")
	}

	sem.Release()

	if !sem.TryAcquire() {
		t.Fatal("expected TryAcquire to succeed after Release")
	}
}

func TestSemaphoreAcquireBlocks(t *testing.T) {
	sem := NewSemaphore(1)
	sem.Acquire()

	done := make(chan struct{})
	go func() {
		sem.Acquire()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Acquire should have blocked while the only token was held")
	default:
	}

	sem.Release()
	<-done
}
