package midi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueDropsNewestWhenFull(t *testing.T) {
	q := NewQueue[byte](3)
	for i := byte(1); i <= 5; i++ {
		q.TryPush(i)
	}
	if q.Len() != 3 || q.Cap() != 3 {
		t.Fatalf("len/cap = %d/%d", q.Len(), q.Cap())
	}
	if q.Dropped() != 2 {
		t.Errorf("dropped = %d, want 2", q.Dropped())
	}
	for want := byte(1); want <= 3; want++ {
		got, ok := q.TryPop()
		if !ok || got != want {
			t.Errorf("pop = %d,%v want %d", got, ok, want)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Error("pop from empty queue succeeded")
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue[string](1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.TryPush("line")
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := q.Pop(ctx)
	if err != nil || got != "line" {
		t.Errorf("pop = %q, %v", got, err)
	}
}

func TestQueuePopCancelled(t *testing.T) {
	q := NewQueue[byte](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Pop(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue[int](64)
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.TryPush(i)
			}
		}()
	}
	wg.Wait()
	if got := uint64(q.Len()) + q.Dropped(); got != 800 {
		t.Errorf("queued+dropped = %d, want 800", got)
	}
}

func TestNewQueueMinimumDepth(t *testing.T) {
	if q := NewQueue[byte](0); q.Cap() != 1 {
		t.Errorf("cap = %d, want 1", q.Cap())
	}
}
