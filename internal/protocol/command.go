// Package protocol implements the incremental memcached ASCII parser
// described in spec.md §4.9 (C9): it walks an internal/iobuf.Cursor over a
// connection's segmented receive buffer, and returns either a fully
// populated Command, a protocol-level error reply to send verbatim, or a
// "need more input" signal that lets the reader resume from the same spot
// once more bytes arrive.
//
// Grounded on original_source/src/memcache/memcache.c's 4-byte-prefix
// dispatch and line-continuation handling.
package protocol

import (
	"github.com/coreware-labs/partcache/internal/constants"
	"github.com/coreware-labs/partcache/internal/iobuf"
)

// Kind identifies which memcached command a Command represents.
type Kind int

const (
	Get Kind = iota
	Gets
	Set
	Add
	Replace
	Append
	Prepend
	Cas
	Incr
	Decr
	Delete
	Touch
	Slabs
	Stats
	FlushAll
	Version
	Verbosity
	Quit
)

func (k Kind) String() string {
	switch k {
	case Get:
		return "get"
	case Gets:
		return "gets"
	case Set:
		return "set"
	case Add:
		return "add"
	case Replace:
		return "replace"
	case Append:
		return "append"
	case Prepend:
		return "prepend"
	case Cas:
		return "cas"
	case Incr:
		return "incr"
	case Decr:
		return "decr"
	case Delete:
		return "delete"
	case Touch:
		return "touch"
	case Slabs:
		return "slabs"
	case Stats:
		return "stats"
	case FlushAll:
		return "flush_all"
	case Version:
		return "version"
	case Verbosity:
		return "verbosity"
	case Quit:
		return "quit"
	default:
		return "unknown"
	}
}

// ReplyError is a pre-formatted protocol-level reply (spec.md §4.9's
// ERROR/CLIENT_ERROR/SERVER_ERROR taxonomy, §7 category 1). When a Command
// carries one, the executor writes it verbatim instead of dispatching a
// cache action.
type ReplyError struct {
	Line string // includes the trailing "\r\n"
}

func (e *ReplyError) Error() string { return e.Line }

func errorReply() *ReplyError       { return &ReplyError{Line: "ERROR\r\n"} }
func clientError(msg string) *ReplyError {
	return &ReplyError{Line: "CLIENT_ERROR " + msg + "\r\n"}
}
func notImplemented() *ReplyError {
	return &ReplyError{Line: "SERVER_ERROR not implemented\r\n"}
}

// paramTooLong matches the literal text memcache.c emits for an oversized
// key, distinct from the generic bad-command-line-format error.
func paramTooLong() *ReplyError {
	return &ReplyError{Line: "CLIENT_ERROR parameter is too long\r\n"}
}

// Command carries one parsed request: its kind, parameters, and (for
// storage commands) a reference to its not-yet-copied data block.
type Command struct {
	Kind Kind
	Err  *ReplyError

	Keys []string // get/gets may request several; others use Keys[0]

	Flags   uint32
	Exptime int64
	Bytes   int
	CAS     uint64
	Delta   uint64
	Noreply bool

	Data    iobuf.DataRef
	HasData bool

	// EndOffset is this command's end position relative to the cursor's
	// buffer snapshot at NewCursor time — used by the connection pipeline
	// to Reduce the receive buffer once a command's reply has been sent
	// (spec.md §4.11).
	EndOffset int

	Quit bool
}

const junkLimit = constants.JunkLimit
const maxKeyLen = constants.MaxKeyLen
