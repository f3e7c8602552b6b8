package iobuf

// Cursor walks a Buffer's unread bytes without mutating it, tracking a
// (segment, offset) position so the memcached parser (spec.md §4.9) can
// attempt to parse a command, discover it needs more bytes, and resume
// from the same spot once more arrive — all without copying the buffer.
type Cursor struct {
	seg *segment
	pos int // offset within seg.readable()
	buf *Buffer
}

// NewCursor returns a cursor positioned at the start of b's unread bytes.
func NewCursor(b *Buffer) *Cursor {
	return &Cursor{seg: b.head, buf: b}
}

// Save captures the cursor's current position so a failed parse attempt
// ("need more input") can roll back to it on retry.
func (c *Cursor) Save() Mark { return Mark{seg: c.seg, pos: c.pos} }

// Mark is an opaque saved Cursor position.
type Mark struct {
	seg *segment
	pos int
}

// Restore rewinds the cursor to a previously saved Mark.
func (c *Cursor) Restore(m Mark) { c.seg, c.pos = m.seg, m.pos }

func (c *Cursor) advanceSegment() bool {
	for c.seg != nil && c.pos >= len(c.seg.readable()) {
		c.seg = c.seg.next
		c.pos = 0
	}
	return c.seg != nil
}

// PeekByte returns the next unread byte without consuming it. ok is false
// at end of buffered input ("need more input").
func (c *Cursor) PeekByte() (b byte, ok bool) {
	if !c.advanceSegment() {
		return 0, false
	}
	return c.seg.readable()[c.pos], true
}

// Advance consumes one byte.
func (c *Cursor) Advance() {
	c.pos++
}

// AdvanceN consumes n bytes, crossing segment boundaries.
func (c *Cursor) AdvanceN(n int) {
	for n > 0 {
		if !c.advanceSegment() {
			return
		}
		avail := len(c.seg.readable()) - c.pos
		if avail > n {
			c.pos += n
			return
		}
		n -= avail
		c.seg = c.seg.next
		c.pos = 0
	}
}

// Offset returns the number of bytes this cursor has consumed from the
// Buffer's original head, i.e. how far Reduce must advance to retire
// everything up to (not including) the cursor's current position. It is
// computed relative to the buffer captured at NewCursor time, so it stays
// correct across AdvanceN calls.
func (c *Cursor) Offset() int {
	n := 0
	for s := c.buf.head; s != nil && s != c.seg; s = s.next {
		n += len(s.readable())
	}
	return n + c.pos
}

// ReadToken scans a run of bytes satisfying stop (returns true to stop
// before consuming that byte) up to maxLen bytes. If the run's bytes all
// live in one segment, the returned slice borrows that segment's storage
// (no copy). If the run spans a segment boundary, the bytes are copied
// into scratch (which must be at least maxLen long) and a slice of
// scratch is returned instead — this is the Go-idiomatic rendering of
// spec.md §4.9's "parser copies the prefix forward into the next segment":
// rather than mutating segment storage in place, the (rare, bounded)
// spanning case is assembled in a scratch buffer the caller already owns.
//
// tooLong is true if the run did not terminate within maxLen+1 bytes of
// buffered input (caller should report "too long"); needMore is true if
// buffered input ran out before a stop byte was seen.
func (c *Cursor) ReadToken(maxLen int, stop func(byte) bool, scratch []byte) (tok []byte, needMore, tooLong bool) {
	start := c.Save()
	n := 0
	spanned := false

	for {
		b, ok := c.PeekByte()
		if !ok {
			c.Restore(start)
			return nil, true, false
		}
		if c.seg != start.seg {
			spanned = true
		}
		if stop(b) {
			break
		}
		if n >= maxLen {
			return nil, false, true
		}
		if n < len(scratch) {
			scratch[n] = b
		}
		n++
		c.Advance()
	}

	if !spanned {
		// Entire token lived in one segment: return a borrowed slice.
		seg := start.seg
		return seg.readable()[start.pos : start.pos+n], false, false
	}
	return scratch[:n], false, false
}

// SkipSpaces consumes consecutive ASCII spaces (0x20) only, per spec.md
// §4.9's "whitespace is single ASCII space".
func (c *Cursor) SkipSpaces() {
	for {
		b, ok := c.PeekByte()
		if !ok || b != ' ' {
			return
		}
		c.Advance()
	}
}

// SkipToEOL advances past the next '\n', treating an optional preceding
// '\r' as part of the line terminator. Returns false if no '\n' has
// arrived yet ("need more input").
func (c *Cursor) SkipToEOL() bool {
	for {
		b, ok := c.PeekByte()
		if !ok {
			return false
		}
		c.Advance()
		if b == '\n' {
			return true
		}
	}
}

// HasBytes reports whether at least n unread bytes are available from the
// cursor's current position without consuming them. Used to check for a
// fully-arrived data block before committing to parse it (spec.md §4.9's
// "set" data block: exactly bytes bytes followed by CRLF).
func (c *Cursor) HasBytes(n int) bool {
	save := c.Save()
	defer c.Restore(save)
	for n > 0 {
		if !c.advanceSegment() {
			return false
		}
		avail := len(c.seg.readable()) - c.pos
		if avail >= n {
			return true
		}
		n -= avail
		c.seg = c.seg.next
		c.pos = 0
	}
	return true
}

// DataRef marks the start of an n-byte data block that the parser has
// confirmed is fully buffered but has not copied. The executor later
// streams it into a fresh entry via CopyFromRef.
type DataRef struct {
	mark Mark
	n    int
}

// PeekDataRef returns a DataRef for the next n bytes without consuming
// them, or ok=false if they haven't all arrived yet.
func (c *Cursor) PeekDataRef(n int) (ref DataRef, ok bool) {
	if !c.HasBytes(n) {
		return DataRef{}, false
	}
	return DataRef{mark: c.Save(), n: n}, true
}

// CopyFromRef copies a DataRef's bytes into dst (len(dst) must equal
// ref.n). This is where the one unavoidable copy out of the receive
// buffer happens — spec.md §4.9 only forbids the *parser* from copying;
// the executor owns turning wire bytes into entry storage.
func CopyFromRef(ref DataRef, dst []byte) {
	seg, pos, remaining := ref.mark.seg, ref.mark.pos, ref.n
	off := 0
	for remaining > 0 {
		chunk := seg.readable()[pos:]
		n := len(chunk)
		if n > remaining {
			n = remaining
		}
		copy(dst[off:off+n], chunk[:n])
		off += n
		remaining -= n
		seg = seg.next
		pos = 0
	}
}

// ConsumeEOL expects (and consumes) the line terminator "\r\n" or "\n".
// ok is false if the terminator hasn't fully arrived yet; bad is true if
// the next bytes are present but not a valid terminator.
func (c *Cursor) ConsumeEOL() (ok, bad bool) {
	b, has := c.PeekByte()
	if !has {
		return false, false
	}
	if b == '\r' {
		c.Advance()
		b, has = c.PeekByte()
		if !has {
			return false, false
		}
	}
	if b != '\n' {
		return true, true
	}
	c.Advance()
	return true, false
}
