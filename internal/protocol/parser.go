package protocol

import (
	"strconv"

	"github.com/coreware-labs/partcache/internal/iobuf"
)

// Status reports whether Parse produced a Command or needs more bytes.
type Status int

const (
	StatusOK Status = iota
	StatusNeedMore
)

var storageCommands = map[string]Kind{
	"set":     Set,
	"add":     Add,
	"replace": Replace,
	"append":  Append,
	"prepend": Prepend,
	"cas":     Cas,
}

var simpleCommands = map[string]Kind{
	"get":       Get,
	"gets":      Gets,
	"incr":      Incr,
	"decr":      Decr,
	"delete":    Delete,
	"touch":     Touch,
	"slabs":     Slabs,
	"stats":     Stats,
	"flush_all": FlushAll,
	"version":   Version,
	"verbosity": Verbosity,
	"quit":      Quit,
}

func isLineEnd(b byte) bool { return b == '\r' || b == '\n' }
func isWordEnd(b byte) bool { return b == ' ' || b == '\r' || b == '\n' }

// Parse attempts to parse exactly one command starting at cur's current
// position. On StatusNeedMore the cursor is left exactly where it started
// so the caller can re-invoke Parse once more bytes have arrived. On
// StatusOK the returned Command's EndOffset marks where the next command
// (if any) begins.
func Parse(cur *iobuf.Cursor) (*Command, Status) {
	start := cur.Save()
	scratch := make([]byte, maxKeyLen+1)

	word, needMore, tooLong := cur.ReadToken(maxKeyLen+8, isWordEnd, scratch)
	if needMore {
		return nil, StatusNeedMore
	}
	if tooLong {
		return resync(cur, start, errorReply())
	}
	name := string(word)

	if kind, ok := storageCommands[name]; ok {
		return parseStorage(cur, start, kind)
	}
	if kind, ok := simpleCommands[name]; ok {
		return parseSimple(cur, start, kind)
	}
	return resync(cur, start, errorReply())
}

// resync skips to the next newline (bounded by the junk limit) so the
// connection can keep parsing after a malformed or unknown command, per
// spec.md §4.9's error handling and defensive junk-limit scan.
func resync(cur *iobuf.Cursor, start iobuf.Mark, reply *ReplyError) (*Command, Status) {
	cur.Restore(start)
	scanned := 0
	for {
		b, ok := cur.PeekByte()
		if !ok {
			cur.Restore(start)
			return nil, StatusNeedMore
		}
		cur.Advance()
		if b == '\n' {
			break
		}
		scanned++
		if scanned > junkLimit {
			return &Command{Err: reply, Quit: true, EndOffset: cur.Offset()}, StatusOK
		}
	}
	return &Command{Err: reply, EndOffset: cur.Offset()}, StatusOK
}

func readKey(cur *iobuf.Cursor, scratch []byte) (key string, needMore, tooLong bool) {
	cur.SkipSpaces()
	tok, needMore, tooLong := cur.ReadToken(maxKeyLen, isWordEnd, scratch)
	if needMore || tooLong {
		return "", needMore, tooLong
	}
	return string(tok), false, false
}

func readUint(cur *iobuf.Cursor, scratch []byte) (v uint64, empty, needMore, bad bool) {
	cur.SkipSpaces()
	tok, needMore, tooLong := cur.ReadToken(32, isWordEnd, scratch)
	if needMore {
		return 0, false, true, false
	}
	if tooLong || len(tok) == 0 {
		return 0, len(tok) == 0, false, true
	}
	n, err := strconv.ParseUint(string(tok), 10, 64)
	if err != nil {
		return 0, false, false, true
	}
	return n, false, false, false
}

func readInt(cur *iobuf.Cursor, scratch []byte) (v int64, needMore, bad bool) {
	u, empty, needMore, bad := readUint(cur, scratch)
	if needMore || bad || empty {
		return 0, needMore, bad || empty
	}
	return int64(u), false, false
}

// peekNoreply checks for an optional trailing "noreply" token before EOL.
func peekNoreply(cur *iobuf.Cursor, scratch []byte) (noreply bool, needMore bool) {
	save := cur.Save()
	cur.SkipSpaces()
	b, ok := cur.PeekByte()
	if !ok {
		cur.Restore(save)
		return false, true
	}
	if isLineEnd(b) {
		cur.Restore(save)
		return false, false
	}
	tok, needMore, tooLong := cur.ReadToken(16, isWordEnd, scratch)
	if needMore {
		cur.Restore(save)
		return false, true
	}
	if !tooLong && string(tok) == "noreply" {
		return true, false
	}
	cur.Restore(save)
	return false, false
}

func consumeEOLOrResync(cur *iobuf.Cursor, start iobuf.Mark) (needMore, bad bool) {
	ok, badEOL := cur.ConsumeEOL()
	if !ok {
		return true, false
	}
	return false, badEOL
}

func parseSimple(cur *iobuf.Cursor, start iobuf.Mark, kind Kind) (*Command, Status) {
	scratch := make([]byte, maxKeyLen+1)
	cmd := &Command{Kind: kind}

	switch kind {
	case Get, Gets:
		var keys []string
		for {
			cur.SkipSpaces()
			b, ok := cur.PeekByte()
			if !ok {
				cur.Restore(start)
				return nil, StatusNeedMore
			}
			if isLineEnd(b) {
				break
			}
			key, needMore, tooLong := readKey(cur, scratch)
			if needMore {
				cur.Restore(start)
				return nil, StatusNeedMore
			}
			if tooLong {
				return resync(cur, start, paramTooLong())
			}
			keys = append(keys, key)
		}
		if len(keys) == 0 {
			return resync(cur, start, errorReply())
		}
		cmd.Keys = keys

	case Delete, Touch:
		key, needMore, tooLong := readKey(cur, scratch)
		if needMore {
			cur.Restore(start)
			return nil, StatusNeedMore
		}
		if tooLong {
			return resync(cur, start, paramTooLong())
		}
		cmd.Keys = []string{key}
		if kind == Touch {
			exp, needMore, bad := readInt(cur, scratch)
			if needMore {
				cur.Restore(start)
				return nil, StatusNeedMore
			}
			if bad {
				return resync(cur, start, clientError("invalid exptime argument"))
			}
			cmd.Exptime = exp
		}
		noreply, needMore := peekNoreply(cur, scratch)
		if needMore {
			cur.Restore(start)
			return nil, StatusNeedMore
		}
		cmd.Noreply = noreply
		if kind == Touch {
			return resync(cur, start, notImplemented())
		}

	case Incr, Decr:
		key, needMore, tooLong := readKey(cur, scratch)
		if needMore {
			cur.Restore(start)
			return nil, StatusNeedMore
		}
		if tooLong {
			return resync(cur, start, paramTooLong())
		}
		delta, empty, needMore, bad := readUint(cur, scratch)
		if needMore {
			cur.Restore(start)
			return nil, StatusNeedMore
		}
		if bad || empty {
			return resync(cur, start, clientError("invalid numeric delta argument"))
		}
		noreply, needMore := peekNoreply(cur, scratch)
		if needMore {
			cur.Restore(start)
			return nil, StatusNeedMore
		}
		cmd.Keys = []string{key}
		cmd.Delta = delta
		cmd.Noreply = noreply

	case FlushAll:
		save := cur.Save()
		cur.SkipSpaces()
		b, ok := cur.PeekByte()
		if !ok {
			cur.Restore(start)
			return nil, StatusNeedMore
		}
		if !isLineEnd(b) {
			cur.Restore(save)
			exp, needMore, bad := readInt(cur, scratch)
			if needMore {
				cur.Restore(start)
				return nil, StatusNeedMore
			}
			if bad {
				return resync(cur, start, clientError("bad command line format"))
			}
			cmd.Exptime = exp
		}
		noreply, needMore := peekNoreply(cur, scratch)
		if needMore {
			cur.Restore(start)
			return nil, StatusNeedMore
		}
		cmd.Noreply = noreply

	case Slabs:
		return resync(cur, start, notImplemented())

	case Version, Quit:
		// no parameters

	case Verbosity:
		lvl, empty, needMore, bad := readUint(cur, scratch)
		if needMore {
			cur.Restore(start)
			return nil, StatusNeedMore
		}
		if bad || empty {
			return resync(cur, start, errorReply())
		}
		cmd.Delta = lvl
		noreply, needMore := peekNoreply(cur, scratch)
		if needMore {
			cur.Restore(start)
			return nil, StatusNeedMore
		}
		cmd.Noreply = noreply

	case Stats:
		// no parameters recognized beyond the bare command
	}

	needMore, bad := consumeEOLOrResync(cur, start)
	if needMore {
		cur.Restore(start)
		return nil, StatusNeedMore
	}
	if bad {
		return resync(cur, start, errorReply())
	}

	if kind == Quit {
		cmd.Quit = true
	}
	cmd.EndOffset = cur.Offset()
	return cmd, StatusOK
}

func parseStorage(cur *iobuf.Cursor, start iobuf.Mark, kind Kind) (*Command, Status) {
	scratch := make([]byte, maxKeyLen+1)
	cmd := &Command{Kind: kind}

	key, needMore, tooLong := readKey(cur, scratch)
	if needMore {
		cur.Restore(start)
		return nil, StatusNeedMore
	}
	if tooLong {
		return resync(cur, start, paramTooLong())
	}
	cmd.Keys = []string{key}

	flags, empty, needMore, bad := readUint(cur, scratch)
	if needMore {
		cur.Restore(start)
		return nil, StatusNeedMore
	}
	if bad || empty {
		return resync(cur, start, clientError("bad command line format"))
	}
	cmd.Flags = uint32(flags)

	exptime, needMoreI, badI := readInt(cur, scratch)
	if needMoreI {
		cur.Restore(start)
		return nil, StatusNeedMore
	}
	if badI {
		return resync(cur, start, clientError("bad command line format"))
	}
	cmd.Exptime = exptime

	nbytes, empty, needMore, bad := readUint(cur, scratch)
	if needMore {
		cur.Restore(start)
		return nil, StatusNeedMore
	}
	if bad || empty {
		return resync(cur, start, clientError("bad command line format"))
	}
	cmd.Bytes = int(nbytes)

	if kind == Cas {
		casVal, empty, needMore, bad := readUint(cur, scratch)
		if needMore {
			cur.Restore(start)
			return nil, StatusNeedMore
		}
		if bad || empty {
			return resync(cur, start, clientError("bad command line format"))
		}
		cmd.CAS = casVal
	}

	noreply, needMore := peekNoreply(cur, scratch)
	if needMore {
		cur.Restore(start)
		return nil, StatusNeedMore
	}
	cmd.Noreply = noreply

	if needMoreEOL, bad := consumeEOLOrResync(cur, start); needMoreEOL {
		cur.Restore(start)
		return nil, StatusNeedMore
	} else if bad {
		return resync(cur, start, errorReply())
	}

	ref, ok := cur.PeekDataRef(cmd.Bytes)
	if !ok {
		cur.Restore(start)
		return nil, StatusNeedMore
	}
	cur.AdvanceN(cmd.Bytes)
	okEOL, badEOL := cur.ConsumeEOL()
	if !okEOL {
		cur.Restore(start)
		return nil, StatusNeedMore
	}
	if badEOL {
		return resync(cur, start, clientError("bad data chunk"))
	}

	cmd.Data = ref
	cmd.HasData = true
	cmd.EndOffset = cur.Offset()
	return cmd, StatusOK
}
