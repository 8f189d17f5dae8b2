package syncutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestContextShardedMutex_LockUnlock(t *testing.T) {
	m := NewContextShardedMutex()

	unlock, err := m.LockContext(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	unlock()
}

func TestContextShardedMutex_SerializesSameKey(t *testing.T) {
	m := NewContextShardedMutex()
	ctx := context.Background()

	// Concurrent turns on one session must run one at a time. A plain
	// read-modify-write on a shared counter surfaces any overlap.
	var counter int
	var wg sync.WaitGroup
	const n = 200

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			unlock, err := m.LockContext(ctx, "session-42")
			if err != nil {
				t.Errorf("lock failed: %v", err)
				return
			}
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != n {
		t.Fatalf("expected %d, got %d: mutual exclusion violated", n, counter)
	}
}

func TestContextShardedMutex_CancelWhileWaiting(t *testing.T) {
	m := NewContextShardedMutex()

	unlock, err := m.LockContext(context.Background(), "held")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = m.LockContext(waitCtx, "held")
	if err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}

	unlock()
}

func TestContextShardedMutex_ReleaseHandsOff(t *testing.T) {
	m := NewContextShardedMutex()
	ctx := context.Background()

	unlock, err := m.LockContext(ctx, "relay")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		u, err := m.LockContext(ctx, "relay")
		if err != nil {
			return
		}
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second goroutine acquired lock before first released")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second goroutine did not acquire lock after release")
	}
}
