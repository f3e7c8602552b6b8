package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakePump never has anything ready; it just waits out its context so the
// dealer loop has a bounded, deterministic pump call in tests.
type fakePump struct{}

func (fakePump) Pump(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func TestRuntimeProcessesPostedWork(t *testing.T) {
	rt := New(Config{ID: 0, Primary: true, Pump: fakePump{}, WorkersMax: 4, InboxSize: 16})

	var n int32
	var wg sync.WaitGroup
	const jobs = 20
	wg.Add(jobs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rt.Run(ctx)
		close(done)
	}()

	for i := 0; i < jobs; i++ {
		rt.Post(WorkItem{Run: func() {
			atomic.AddInt32(&n, 1)
			wg.Done()
		}})
	}

	waitOrTimeout(t, &wg, 2*time.Second)
	if got := atomic.LoadInt32(&n); got != jobs {
		t.Fatalf("processed %d jobs, want %d", got, jobs)
	}

	rt.Stop()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(d):
		t.Fatal("timed out waiting for jobs to complete")
	}
}
