package combiner

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestCombinerSerializesAccess(t *testing.T) {
	var counter int64
	var inside int32

	c := New[int](func(data int) {
		if !atomic.CompareAndSwapInt32(&inside, 0, 1) {
			t.Error("routine re-entered concurrently")
		}
		counter += int64(data)
		atomic.StoreInt32(&inside, 0)
	}, 64, 4)

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			c.Execute(1)
		}()
	}
	wg.Wait()

	if counter != n {
		t.Fatalf("counter = %d, want %d", counter, n)
	}
}

func TestCombinerSmallHandoffStillCompletesAll(t *testing.T) {
	var counter int64
	c := New[int](func(data int) {
		atomic.AddInt64(&counter, int64(data))
	}, 256, 1) // handoff of 1 forces many role handoffs under a burst

	const n = 500
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			c.Execute(1)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&counter); got != n {
		t.Fatalf("counter = %d, want %d", got, n)
	}
}
