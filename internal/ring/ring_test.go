package ring

import (
	"sync"
	"testing"
)

func TestSPSCBasic(t *testing.T) {
	q := NewSPSC[int](4)
	if q.Cap() != 4 {
		t.Fatalf("Cap() = %d, want 4", q.Cap())
	}
	if _, err := q.Dequeue(); err != ErrEmpty {
		t.Fatalf("Dequeue on empty ring = %v, want ErrEmpty", err)
	}
	for i := 0; i < 4; i++ {
		if err := q.Enqueue(i); err != nil {
			t.Fatalf("Enqueue(%d) failed: %v", i, err)
		}
	}
	if err := q.Enqueue(99); err != ErrFull {
		t.Fatalf("Enqueue on full ring = %v, want ErrFull", err)
	}
	for i := 0; i < 4; i++ {
		got, err := q.Dequeue()
		if err != nil || got != i {
			t.Fatalf("Dequeue() = (%d, %v), want (%d, nil)", got, err, i)
		}
	}
}

func TestSPSCProducerConsumerOrdering(t *testing.T) {
	const n = 10000
	q := NewSPSC[int](64)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for q.Enqueue(i) != nil {
			}
		}
	}()

	got := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for len(got) < n {
			v, err := q.Dequeue()
			if err == nil {
				got = append(got, v)
			}
		}
	}()
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("FIFO violated at index %d: got %d, want %d", i, v, i)
		}
	}
}

func TestMPMCPutGet(t *testing.T) {
	q := NewMPMC[int](4)
	for i := 0; i < 4; i++ {
		if !q.Put(i) {
			t.Fatalf("Put(%d) failed", i)
		}
	}
	if q.Put(99) {
		t.Fatal("Put on full ring succeeded, want failure")
	}
	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		v, ok := q.Get()
		if !ok {
			t.Fatalf("Get() failed at i=%d", i)
		}
		seen[v] = true
	}
	for i := 0; i < 4; i++ {
		if !seen[i] {
			t.Fatalf("value %d never dequeued", i)
		}
	}
	if _, ok := q.Get(); ok {
		t.Fatal("Get on empty ring succeeded, want failure")
	}
}

// TestMPMCConcurrentProducers checks P8: under concurrent producers, a
// single consumer observes a value set with no loss and no duplication.
func TestMPMCConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 2000
	const total = producers * perProducer

	q := NewMPMC[int](4096)
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		base := p * perProducer
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(base + i)
			}
		}(base)
	}

	seen := make([]bool, total)
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	count := 0
	for count < total {
		v, ok := q.Get()
		if !ok {
			select {
			case <-done:
				v, ok = q.Get()
				if !ok {
					continue
				}
			default:
				continue
			}
		}
		mu.Lock()
		if seen[v] {
			t.Fatalf("duplicate value dequeued: %d", v)
		}
		seen[v] = true
		mu.Unlock()
		count++
	}
}

func TestRelaxedMPMCSingleProducer(t *testing.T) {
	q := NewRelaxedMPMC[int](4)
	for i := 0; i < 4; i++ {
		if !q.Put(i) {
			t.Fatalf("Put(%d) failed", i)
		}
	}
	if q.Put(99) {
		t.Fatal("Put on full ring succeeded")
	}
	for i := 0; i < 4; i++ {
		v, ok := q.Get()
		if !ok || v != i {
			t.Fatalf("Get() = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
}

func TestRoundToPow2(t *testing.T) {
	cases := map[int]int{1: 2, 2: 2, 3: 4, 5: 8, 16: 16, 17: 32}
	for in, want := range cases {
		if got := roundToPow2(in); got != want {
			t.Errorf("roundToPow2(%d) = %d, want %d", in, got, want)
		}
	}
}
