// Package iobuf implements the segmented I/O buffer described in spec.md
// §4.3 (C3): a chain of byte segments with append/printf/splice/demand/
// reduce and a cursor walk, used for both a connection's receive buffer and
// its transmit buffer. The zero-copy splice path is what lets the command
// executor stream a cache entry's bytes into a reply without copying them.
//
// Grounded on the chained-segment shape described by
// _examples/other_examples/..._hayabusa-cloud-iobuf__doc.go.go (tiered
// buffer pool, indirect ownership) and the ring-of-chunks idiom in
// _examples/original_source/src/base/ring.h; the pool tiers themselves are
// adapted from the teacher's internal/queue/pool.go size-bucketed
// sync.Pool.
package iobuf

import (
	"fmt"
)

// segment is one chunk in the chain. Owned segments come from pool-backed
// storage and are writable at their tail; spliced segments wrap an
// externally owned byte range and are read-only, releasing a reference
// when the read cursor passes them.
type segment struct {
	data     []byte // owned backing storage, or the spliced range itself
	wlen     int    // bytes written so far (== len(data) for spliced segments)
	rpos     int    // read cursor within data[:wlen]
	spliced  bool
	release  func()
	released bool
	next     *segment
}

func (s *segment) readable() []byte { return s.data[s.rpos:s.wlen] }
func (s *segment) writable() []byte { return s.data[s.wlen:] }

func (s *segment) drop() {
	if s.spliced && !s.released && s.release != nil {
		s.released = true
		s.release()
	}
}

// Buffer is a chain of segments forming one logical byte stream. A single
// Buffer is not safe for concurrent readers and writers; spec.md §4.11
// pairs exactly one reader task and one writer task per connection buffer,
// coordinated through the task scheduler rather than through locking here.
type Buffer struct {
	head, tail *segment
	length     int // total unread bytes across the whole chain
}

// New creates an empty segmented buffer.
func New() *Buffer {
	return &Buffer{}
}

// Len returns the number of unread bytes currently buffered.
func (b *Buffer) Len() int { return b.length }

// Empty reports whether there are no unread bytes.
func (b *Buffer) Empty() bool { return b.length == 0 }

func (b *Buffer) appendSegment(s *segment) {
	if b.tail == nil {
		b.head, b.tail = s, s
		return
	}
	b.tail.next = s
	b.tail = s
}

// demandOwnedTail ensures the tail segment is an owned, writable segment
// with at least n free bytes, allocating a fresh pooled segment if the
// current tail is spliced, full, or absent. It returns that tail.
func (b *Buffer) demandOwnedTail(n int) *segment {
	if b.tail != nil && !b.tail.spliced && len(b.tail.writable()) >= n {
		return b.tail
	}
	size := SegmentSize
	if n > size {
		size = n
	}
	s := &segment{data: getChunk(size)}
	b.appendSegment(s)
	return s
}

// Demand ensures at least n contiguous bytes are writable in the tail
// segment and returns that slice (spec.md §4.3 demand(n)). The caller
// writes into the returned slice (e.g. via net.Conn.Read) and then calls
// Commit with the number of bytes actually written.
func (b *Buffer) Demand(n int) []byte {
	s := b.demandOwnedTail(n)
	return s.data[s.wlen:]
}

// Commit marks n bytes (previously handed out by Demand) as written and
// readable.
func (b *Buffer) Commit(n int) {
	if n <= 0 || b.tail == nil {
		return
	}
	b.tail.wlen += n
	b.length += n
}

// Append copies p into the buffer's tail, allocating new segments as
// needed.
func (b *Buffer) Append(p []byte) {
	for len(p) > 0 {
		dst := b.Demand(len(p))
		n := copy(dst, p)
		b.Commit(n)
		p = p[n:]
	}
}

// Printf formats into the buffer's tail, growing it if necessary.
func (b *Buffer) Printf(format string, args ...any) {
	fmt.Fprintf(fmtWriter{b}, format, args...)
}

// fmtWriter adapts Buffer.Append to io.Writer for fmt.Fprintf without
// pulling the whole io package surface into the hot path.
type fmtWriter struct{ b *Buffer }

func (w fmtWriter) Write(p []byte) (int, error) {
	w.b.Append(p)
	return len(p), nil
}

// Splice attaches an externally owned byte range as a new segment with no
// copy. release is invoked exactly once, when the read cursor passes this
// segment (spec.md §4.3 invariant: spliced segments are released in order
// and exactly once). This is the zero-copy path the command executor uses
// to stream a cache entry's value bytes into a reply.
func (b *Buffer) Splice(src []byte, release func()) {
	s := &segment{data: src, wlen: len(src), spliced: true, release: release}
	b.appendSegment(s)
	b.length += len(src)
}

// Peek returns the next contiguous unread run without consuming it, or nil
// if the buffer is empty. The caller must not retain the slice past the
// next mutating call.
func (b *Buffer) Peek() []byte {
	for b.head != nil && b.head.rpos >= b.head.wlen {
		b.popHead()
	}
	if b.head == nil {
		return nil
	}
	return b.head.readable()
}

// popHead discards an exhausted head segment, releasing it if spliced.
func (b *Buffer) popHead() {
	old := b.head
	b.head = old.next
	if b.head == nil {
		b.tail = nil
	}
	old.drop()
	if !old.spliced {
		putChunk(old.data)
	}
}

// Reduce advances the read cursor by n bytes, releasing any segments fully
// passed over (spliced segments' release callbacks fire here, in order,
// exactly once each).
func (b *Buffer) Reduce(n int) {
	for n > 0 && b.head != nil {
		avail := b.head.wlen - b.head.rpos
		if avail > n {
			b.head.rpos += n
			b.length -= n
			return
		}
		n -= avail
		b.length -= avail
		b.popHead()
	}
}

// WriteTo drains the entire readable chain through write, releasing
// segments as they are fully consumed, stopping at the first short write
// or error. It returns the number of bytes successfully drained.
func (b *Buffer) WriteTo(write func([]byte) (int, error)) (int64, error) {
	var total int64
	for {
		chunk := b.Peek()
		if chunk == nil {
			return total, nil
		}
		n, err := write(chunk)
		if n > 0 {
			b.Reduce(n)
			total += int64(n)
		}
		if err != nil {
			return total, err
		}
		if n < len(chunk) {
			return total, nil // short write: let the caller retry later
		}
	}
}

// Discard releases every segment without requiring the data to be
// consumed through Peek/Reduce; used when a connection is torn down with
// commands still queued (spec.md §7 transport error handling).
func (b *Buffer) Discard() {
	for b.head != nil {
		b.popHead()
	}
	b.length = 0
}
