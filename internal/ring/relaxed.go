package ring

import "code.hybscloud.com/atomix"

// RelaxedMPMC shares the MPMC slot layout but is used in single-producer-
// at-a-time mode: the caller guarantees producers never race each other
// (one designated producer at a time), so the tail advance skips the
// CAS spec.md §4.1 calls out for the general MPMC ring. Consumers still use
// the same CAS-based Get as MPMC, since cross-runtime dealers may drain
// concurrently.
type RelaxedMPMC[T any] struct {
	_    pad
	tail atomix.Uint64
	_    pad
	head atomix.Uint64
	_    pad
	buf  []mpmcSlot[T]
	mask uint64
}

// NewRelaxedMPMC creates a relaxed ring. Capacity rounds up to the next
// power of two.
func NewRelaxedMPMC[T any](capacity int) *RelaxedMPMC[T] {
	n := uint64(roundToPow2(capacity))
	q := &RelaxedMPMC[T]{
		buf:  make([]mpmcSlot[T], n),
		mask: n - 1,
	}
	for i := uint64(0); i < n; i++ {
		q.buf[i].lock.StoreRelaxed(i)
	}
	return q
}

// Cap returns the ring's usable capacity.
func (q *RelaxedMPMC[T]) Cap() int { return int(q.mask + 1) }

// Put enqueues elem. Caller must guarantee no concurrent Put call.
func (q *RelaxedMPMC[T]) Put(elem T) bool {
	tail := q.tail.LoadRelaxed()
	slot := &q.buf[tail&q.mask]
	if slot.lock.LoadAcquire() != tail {
		return false
	}
	q.tail.StoreRelaxed(tail + 1)
	slot.data = elem
	slot.lock.StoreRelease(tail + 1)
	return true
}

// Get attempts one non-blocking, CAS-based dequeue; safe for concurrent
// consumers.
func (q *RelaxedMPMC[T]) Get() (T, bool) {
	var zero T
	head := q.head.LoadAcquire()
	slot := &q.buf[head&q.mask]
	if slot.lock.LoadAcquire() != head+1 {
		return zero, false
	}
	if !q.head.CompareAndSwapAcqRel(head, head+1) {
		return zero, false
	}
	elem := slot.data
	slot.data = zero
	slot.lock.StoreRelease(head + 1 + q.mask)
	return elem, true
}
