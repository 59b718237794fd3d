package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestStripedMutex_SerializesSameKey(t *testing.T) {
	m := NewStripedMutex()
	ctx := context.Background()

	release, err := m.Lock(ctx, "instance-1")
	if err != nil {
		t.Fatalf("first lock failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		r, err := m.Lock(ctx, "instance-1")
		if err != nil {
			t.Errorf("second lock failed: %v", err)
			return
		}
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first still held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after release")
	}
}

func TestStripedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	m := NewStripedMutex()
	ctx := context.Background()

	release, err := m.Lock(ctx, "instance-a")
	if err != nil {
		t.Fatalf("lock instance-a failed: %v", err)
	}
	defer release()

	done := make(chan struct{})
	go func() {
		r, err := m.Lock(ctx, "instance-b")
		if err != nil {
			t.Errorf("lock instance-b failed: %v", err)
			return
		}
		r()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestStripedMutex_ContextCancellation(t *testing.T) {
	m := NewStripedMutex()
	bg := context.Background()

	release, err := m.Lock(bg, "instance-x")
	if err != nil {
		t.Fatalf("initial lock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(bg, 20*time.Millisecond)
	defer cancel()

	_, err = m.Lock(ctx, "instance-x")
	if err == nil {
		t.Fatal("expected context deadline error, got nil")
	}

	release()

	// Confirm the stripe isn't left locked forever by the cancelled waiter.
	r2, err := m.Lock(bg, "instance-x")
	if err != nil {
		t.Fatalf("lock after cancellation failed: %v", err)
	}
	r2()
}

func TestStripedMutex_ConcurrentDistinctKeys(t *testing.T) {
	m := NewStripedMutex()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := "key-" + string(rune('a'+n%26))
			release, err := m.Lock(ctx, key)
			if err != nil {
				t.Errorf("lock %s failed: %v", key, err)
				return
			}
			release()
		}(i)
	}
	wg.Wait()
}
