package ring

import "code.hybscloud.com/atomix"

// SPSC is a single-producer, single-consumer bounded ring. The producer
// performs a release store on the slot write; the consumer performs an
// acquire load on the slot read, giving the happens-before relationship
// spec.md §4.1 requires without any lock.
type SPSC[T any] struct {
	_          pad
	tail       atomix.Uint64 // producer writes here
	_          pad
	cachedHead uint64 // producer's cached view of head, avoids a cross-core load every push
	_          pad
	head       atomix.Uint64 // consumer reads from here
	_          pad
	cachedTail uint64 // consumer's cached view of tail
	_          pad
	buffer     []T
	mask       uint64
}

// NewSPSC creates an SPSC ring. Capacity rounds up to the next power of two.
func NewSPSC[T any](capacity int) *SPSC[T] {
	n := uint64(roundToPow2(capacity))
	return &SPSC[T]{
		buffer: make([]T, n),
		mask:   n - 1,
	}
}

// Cap returns the ring's usable capacity.
func (q *SPSC[T]) Cap() int { return int(q.mask + 1) }

// Enqueue publishes elem to the ring. Producer-only. Returns ErrFull when
// the consumer hasn't caught up.
func (q *SPSC[T]) Enqueue(elem T) error {
	tail := q.tail.LoadRelaxed()
	if tail-q.cachedHead > q.mask {
		q.cachedHead = q.head.LoadAcquire()
		if tail-q.cachedHead > q.mask {
			return ErrFull
		}
	}
	q.buffer[tail&q.mask] = elem
	q.tail.StoreRelease(tail + 1)
	return nil
}

// Dequeue removes the oldest element. Consumer-only. Returns ErrEmpty when
// the producer hasn't published anything new.
func (q *SPSC[T]) Dequeue() (T, error) {
	var zero T
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			return zero, ErrEmpty
		}
	}
	elem := q.buffer[head&q.mask]
	q.buffer[head&q.mask] = zero
	q.head.StoreRelease(head + 1)
	return elem, nil
}
