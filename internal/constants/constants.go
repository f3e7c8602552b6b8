// Package constants collects the tunables shared across partcache's
// internal packages so defaults live in exactly one place.
package constants

import "time"

// Cache sizing defaults (spec.md §6 configuration options).
const (
	// DefaultVolume is the total cache byte budget across all partitions
	// when the operator does not set -volume.
	DefaultVolume = 64 << 20 // 64MiB

	// DefaultPartitions is the partition count used when -partitions is
	// unset or not positive; any configured count is rounded down to the
	// nearest power of two by the table coordinator.
	DefaultPartitions = 4

	// MaxKeyLen is the maximum key length accepted by the parser
	// (spec.md §4.9, §8 boundary tests: 250 OK, 251 CLIENT_ERROR).
	MaxKeyLen = 250

	// ResizeThreshold is the live-entries-to-bucket-count ratio that
	// triggers striding. Two source revisions disagreed (×2 vs ×4); this
	// spec's Open Questions section keeps the conservative ×2 default.
	ResizeThreshold = 2

	// StrideWidth is the number of source buckets processed per
	// incremental-rehash step (spec.md §4.7).
	StrideWidth = 64

	// JunkLimit bounds defensive scanning for a command boundary before
	// the connection is flagged to quit (spec.md §4.9).
	JunkLimit = 1024
)

// Runtime scheduling defaults (spec.md §4.5, §5).
const (
	// DealerPumpTimeout is the default bounded timeout the dealer task
	// uses when pumping the event loop with no queued inbox work.
	DealerPumpTimeout = time.Second

	// SocketReadTimeout is a 10-second per-socket read timeout value. No
	// package applies it: connections have no read timeout, and an idle
	// client is never dropped for inactivity.
	SocketReadTimeout = 10 * time.Second

	// DefaultWorkersMax bounds the number of concurrently spawned worker
	// tasks per runtime.
	DefaultWorkersMax = 256

	// RingCapacity is the default capacity for the runtime inbox ring and
	// the combiner's request ring; rounded up to a power of two by callers.
	RingCapacity = 1024

	// CombinerHandoffBound caps how many queued requests one combiner
	// role-holder drains before releasing the role (spec.md §4.2).
	CombinerHandoffBound = 32
)

// I/O buffer sizing (spec.md §4.3, C3 segmented buffer).
const (
	// SegmentSize is the default chunk size for a new segment appended to
	// a segmented I/O buffer's tail.
	SegmentSize = 16 * 1024
)
