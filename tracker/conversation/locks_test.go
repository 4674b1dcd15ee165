package conversation

import (
	"sync"
	"testing"
	"time"
)

func TestSessionLocksSerializeOneSession(t *testing.T) {
	t.Parallel()

	locks := newSessionLocks()
	release := locks.lock("s1")

	acquired := make(chan struct{})
	go func() {
		unlock := locks.lock("s1")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first is held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestSessionLocksAllowOtherSessions(t *testing.T) {
	t.Parallel()

	locks := newSessionLocks()
	release := locks.lock("s1")
	defer release()

	done := make(chan struct{})
	go func() {
		locks.lock("s2")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another session blocked")
	}
}

func TestSessionLocksAreReleased(t *testing.T) {
	t.Parallel()

	locks := newSessionLocks()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.lock("s1")()
		}()
	}
	wg.Wait()

	if n := locks.len(); n != 0 {
		t.Fatalf("len() = %d, want 0", n)
	}
}
