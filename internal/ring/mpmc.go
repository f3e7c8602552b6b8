package ring

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// mpmcSlot carries one element plus a generation "lock" word. A slot whose
// lock equals its own index belongs to the next producer; a slot whose
// lock equals index+1 belongs to the next consumer (spec.md §4.1).
type mpmcSlot[T any] struct {
	lock atomix.Uint64
	data T
	_    pad
}

// MPMC is a multi-producer, multi-consumer bounded ring. Put/Get are
// wait-free, CAS-based, and fail fast on contention loss or a full/empty
// ring. Enqueue/Dequeue are the blocking counterparts: they claim a slot
// with fetch-and-add and spin-wait (with exponential backoff) for the
// generation they expect, which can never itself deadlock another ring's
// index (spec.md §4.1's no-blocking-while-holding-another-ring's-index
// contract — these calls touch only their own index).
type MPMC[T any] struct {
	_    pad
	tail atomix.Uint64 // next slot a producer will claim
	_    pad
	head atomix.Uint64 // next slot a consumer will claim
	_    pad
	buf  []mpmcSlot[T]
	mask uint64
}

// NewMPMC creates an MPMC ring. Capacity rounds up to the next power of two.
func NewMPMC[T any](capacity int) *MPMC[T] {
	n := uint64(roundToPow2(capacity))
	q := &MPMC[T]{
		buf:  make([]mpmcSlot[T], n),
		mask: n - 1,
	}
	for i := uint64(0); i < n; i++ {
		q.buf[i].lock.StoreRelaxed(i)
	}
	return q
}

// Cap returns the ring's usable capacity.
func (q *MPMC[T]) Cap() int { return int(q.mask + 1) }

// Put attempts one non-blocking, wait-free enqueue. Returns false if the
// ring is currently full or another producer won the race for the slot.
func (q *MPMC[T]) Put(elem T) bool {
	tail := q.tail.LoadAcquire()
	slot := &q.buf[tail&q.mask]
	if slot.lock.LoadAcquire() != tail {
		return false // full, or lost the race; caller may retry
	}
	if !q.tail.CompareAndSwapAcqRel(tail, tail+1) {
		return false
	}
	slot.data = elem
	slot.lock.StoreRelease(tail + 1)
	return true
}

// Get attempts one non-blocking, wait-free dequeue. Returns false if the
// ring is currently empty or another consumer won the race for the slot.
func (q *MPMC[T]) Get() (T, bool) {
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

// Enqueue blocks (busy-waiting with backoff) until it can publish elem.
// Used by the combiner to publish requests, where the caller is willing to
// spin rather than drop the work item.
func (q *MPMC[T]) Enqueue(elem T) {
	tail := q.tail.AddAcqRel(1) - 1
	slot := &q.buf[tail&q.mask]
	sw := spin.Wait{}
	for slot.lock.LoadAcquire() != tail {
		sw.Once()
	}
	slot.data = elem
	slot.lock.StoreRelease(tail + 1)
}

// Dequeue blocks (busy-waiting with backoff) until it can take an element.
func (q *MPMC[T]) Dequeue() T {
	head := q.head.AddAcqRel(1) - 1
	slot := &q.buf[head&q.mask]
	sw := spin.Wait{}
	for slot.lock.LoadAcquire() != head+1 {
		sw.Once()
	}
	elem := slot.data
	var zero T
	slot.data = zero
	slot.lock.StoreRelease(head + 1 + q.mask)
	return elem
}
