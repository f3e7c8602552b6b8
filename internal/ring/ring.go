// Package ring implements the lock-free FIFO handoff channels described in
// spec.md §4.1 (C1): a single-producer/single-consumer ring, a
// multi-producer/multi-consumer ring with blocking and non-blocking ends,
// and a relaxed single-producer-at-a-time variant that shares the MPMC slot
// layout. All three are power-of-two capacity.
//
// The slot-generation scheme (each slot carries its data plus a "lock"
// encoding which producer/consumer generation owns it) follows the
// algorithm described in spec.md §4.1, in the spirit of the cycle-tagged
// slots used by code.hybscloud.com/lfq's MPMC/SPMC queues, built here on
// the same cache-padded atomics (code.hybscloud.com/atomix) and backoff
// helper (code.hybscloud.com/spin) that package uses.
package ring

import (
	"errors"
)

// ErrFull is returned by a non-blocking enqueue when the ring has no free
// slot.
var ErrFull = errors.New("ring: full")

// ErrEmpty is returned by a non-blocking dequeue when the ring has no
// published element.
var ErrEmpty = errors.New("ring: empty")

// pad occupies a cache line so hot counters in adjacent fields don't share
// one with false sharing between producer and consumer cores.
type pad [56]byte

func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
