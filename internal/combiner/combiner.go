// Package combiner implements flat combining (spec.md §4.2, C2): given a
// per-partition routine R(data), Combiner serializes calls to R coming from
// many goroutines without a blocking lock. Grounded on
// _examples/original_source/src/base/combiner.h (mm_combiner_execute /
// mm_combiner_create / routine+handoff shape), rebuilt on top of this
// module's own ring.MPMC instead of the original's mm_ring_mpmc, using
// code.hybscloud.com/atomix for the role flag and done markers and
// code.hybscloud.com/spin for the waiter's backoff.
package combiner

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"github.com/coreware-labs/partcache/internal/ring"
)

// Routine is the serialized action a Combiner executes on behalf of its
// callers. It is assumed total (spec.md §4.2: "a combined routine is
// assumed total" — no failure path is threaded back through Execute).
type Routine[T any] func(data T)

type request[T any] struct {
	data T
	done atomix.Bool
}

// Combiner serializes calls to a Routine across any number of concurrent
// callers. Exactly one caller at a time holds the "combiner role" and
// drains the ring, applying Routine up to Handoff times before releasing
// the role to the next acquirer.
type Combiner[T any] struct {
	routine Routine[T]
	handoff int
	ring    *ring.MPMC[*request[T]]
	owned   atomix.Bool
}

// New creates a Combiner. size is the request ring's capacity (rounded up
// to a power of two); handoff bounds how many requests one role-holder
// drains before releasing the role, trading latency for throughput
// (spec.md §4.2).
func New[T any](routine Routine[T], size, handoff int) *Combiner[T] {
	if handoff < 1 {
		handoff = 1
	}
	return &Combiner[T]{
		routine: routine,
		handoff: handoff,
		ring:    ring.NewMPMC[*request[T]](size),
	}
}

// Execute publishes data and blocks until some combiner role-holder has
// applied Routine to it (spec.md §4.2 steps 1–4).
//
// A waiter that doesn't win the initial race keeps retrying the role CAS
// between backoff steps rather than only ever spinning on its own
// done-flag: under bursts larger than the handoff bound, the request at
// the back of the ring would otherwise never be reached once every other
// caller has already fallen through to waiting.
func (c *Combiner[T]) Execute(data T) {
	req := &request[T]{data: data}
	c.ring.Enqueue(req)

	sw := spin.Wait{}
	for {
		if req.done.LoadAcquire() {
			return
		}
		if c.owned.CompareAndSwapAcqRel(false, true) {
			c.drain()
			continue
		}
		sw.Once()
	}
}

// drain applies routine to queued requests up to the handoff bound, then
// releases the combiner role. Called only by the thread that just won the
// CAS on owned.
func (c *Combiner[T]) drain() {
	for i := 0; i < c.handoff; i++ {
		req, ok := c.ring.Get()
		if !ok {
			break
		}
		c.routine(req.data)
		req.done.StoreRelease(true)
	}
	c.owned.StoreRelease(false)
}
