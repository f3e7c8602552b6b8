package iobuf

import (
	"sync"

	"github.com/coreware-labs/partcache/internal/constants"
)

// SegmentSize is the default chunk size for a fresh owned segment.
const SegmentSize = constants.SegmentSize

// Chunk size tiers, adapted from the teacher's internal/queue/pool.go
// size-bucketed sync.Pool (there: 128KB/256KB/512KB/1MB for block I/O
// payloads; here: network-buffer sized tiers matching typical memcached
// command and value sizes).
const (
	size4k  = 4 * 1024
	size16k = 16 * 1024
	size64k = 64 * 1024
	size256 = 256 * 1024
)

var chunkPool = struct {
	p4k  sync.Pool
	p16k sync.Pool
	p64k sync.Pool
	p256 sync.Pool
}{
	p4k:  sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	p16k: sync.Pool{New: func() any { b := make([]byte, size16k); return &b }},
	p64k: sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
	p256: sync.Pool{New: func() any { b := make([]byte, size256); return &b }},
}

// getChunk returns a pooled slice of at least the requested size, sliced to
// its full capacity.
func getChunk(size int) []byte {
	switch {
	case size <= size4k:
		b := *chunkPool.p4k.Get().(*[]byte)
		return b[:cap(b)]
	case size <= size16k:
		b := *chunkPool.p16k.Get().(*[]byte)
		return b[:cap(b)]
	case size <= size64k:
		b := *chunkPool.p64k.Get().(*[]byte)
		return b[:cap(b)]
	case size <= size256:
		b := *chunkPool.p256.Get().(*[]byte)
		return b[:cap(b)]
	default:
		return make([]byte, size) // oversized values bypass the pool
	}
}

// putChunk returns a buffer to its size-bucketed pool. Buffers with a
// non-standard capacity (oversized allocations) are simply dropped.
func putChunk(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size4k:
		chunkPool.p4k.Put(&buf)
	case size16k:
		chunkPool.p16k.Put(&buf)
	case size64k:
		chunkPool.p64k.Put(&buf)
	case size256:
		chunkPool.p256.Put(&buf)
	}
}
