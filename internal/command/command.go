// Package command executes parsed protocol.Command values against a
// cache.Table and renders their replies into an iobuf.Buffer (spec.md
// §4.10, C10). It is the bridge between the wire-level parser and the
// partitioned store: one Execute call per command, serialized per
// partition by whichever cache.Engine that partition was built with.
//
// Grounded on original_source/src/memcache/action.h's action verbs
// (lookup/finish/create/cancel/insert/update/delete/flush) and
// original_source/src/memcache/memcache.c's reply formatting.
package command

import (
	"strconv"
	"time"

	"github.com/coreware-labs/partcache/internal/cache"
	"github.com/coreware-labs/partcache/internal/interfaces"
	"github.com/coreware-labs/partcache/internal/iobuf"
	"github.com/coreware-labs/partcache/internal/logging"
	"github.com/coreware-labs/partcache/internal/protocol"
)

// Stats carries the supplemented "stats" reply counters (spec.md's
// SUPPLEMENTED FEATURES: original_source exposes these via
// memcache/stats.h, dropped by the distillation but restored here).
type Stats struct {
	Gets      uint64
	GetHits   uint64
	GetMisses uint64
	Sets      uint64
	Deletes   uint64
	Evictions uint64
	StartTime int64
}

// Executor dispatches commands against a cache.Table.
type Executor struct {
	Table    *cache.Table
	Log      *logging.Logger
	Version  string
	Observer interfaces.Observer

	stats Stats
}

// New builds an Executor over tbl.
func New(tbl *cache.Table, log *logging.Logger, version string) *Executor {
	if log == nil {
		log = logging.Default()
	}
	return &Executor{Table: tbl, Log: log, Version: version}
}

func (ex *Executor) observe(name string, start time.Time, success bool) {
	if ex.Observer == nil {
		return
	}
	ex.Observer.ObserveCommand(name, uint64(time.Since(start).Nanoseconds()), success)
}

// Execute runs cmd and writes its reply to out. now is Unix seconds, used
// for expiration checks. It reports whether the connection should close
// after this reply is flushed (spec.md §4.9's "quit").
func (ex *Executor) Execute(cmd *protocol.Command, out *iobuf.Buffer, now int64) (quit bool) {
	start := time.Now()
	if cmd.Err != nil {
		out.Append([]byte(cmd.Err.Line))
		ex.observe(cmd.Kind.String(), start, false)
		return cmd.Quit
	}
	defer func() { ex.observe(cmd.Kind.String(), start, true) }()

	switch cmd.Kind {
	case protocol.Get, protocol.Gets:
		ex.execGet(cmd, out, now)
	case protocol.Set:
		ex.execStore(cmd, out, now, storeSet)
	case protocol.Add:
		ex.execStore(cmd, out, now, storeAdd)
	case protocol.Replace:
		ex.execStore(cmd, out, now, storeReplace)
	case protocol.Append:
		ex.execStore(cmd, out, now, storeAppend)
	case protocol.Prepend:
		ex.execStore(cmd, out, now, storePrepend)
	case protocol.Cas:
		ex.execStore(cmd, out, now, storeCas)
	case protocol.Incr:
		ex.execIncrDecr(cmd, out, now, +1)
	case protocol.Decr:
		ex.execIncrDecr(cmd, out, now, -1)
	case protocol.Delete:
		ex.execDelete(cmd, out, now)
	case protocol.FlushAll:
		ex.execFlushAll(cmd, out, now)
	case protocol.Version:
		out.Printf("VERSION %s\r\n", ex.Version)
	case protocol.Verbosity:
		logging.SetLevel(logging.LogLevel(cmd.Delta))
		if !cmd.Noreply {
			out.Append([]byte("OK\r\n"))
		}
	case protocol.Stats:
		ex.execStats(out)
	case protocol.Quit:
		return true
	default:
		// Touch/Slabs already carry a not-implemented ReplyError from the
		// parser and are handled by the cmd.Err branch above.
		out.Append([]byte("ERROR\r\n"))
	}
	return false
}

// execGet renders VALUE replies by splicing each entry's value bytes
// straight into out rather than copying them (spec.md §4.3/§4.11's
// zero-copy value send, C11). The entry's reference taken by Lookup is
// only dropped once the spliced segment is fully written out — not when
// execGet returns — so the bytes stay live for as long as the connection's
// transmit buffer still holds them.
func (ex *Executor) execGet(cmd *protocol.Command, out *iobuf.Buffer, now int64) {
	withCAS := cmd.Kind == protocol.Gets
	for _, key := range cmd.Keys {
		ex.stats.Gets++
		p, hash := ex.Table.PartitionOf([]byte(key))
		var (
			header []byte
			entry  *cache.Entry
		)
		p.Do(func() {
			e := p.Lookup([]byte(key), hash, now)
			if e == nil {
				ex.stats.GetMisses++
				if ex.Observer != nil {
					ex.Observer.ObserveGetMiss()
				}
				return
			}
			ex.stats.GetHits++
			if withCAS {
				header = appendValueHeaderCAS(nil, e.Key, e.Flags, len(e.Value), e.CAS)
			} else {
				header = appendValueHeader(nil, e.Key, e.Flags, len(e.Value))
			}
			entry = e
			if ex.Observer != nil {
				ex.Observer.ObserveGetHit(uint64(len(e.Value)))
			}
		})
		if entry == nil {
			continue
		}
		out.Append(header)
		out.Splice(entry.Value, func() {
			p.Do(func() { p.Finish(entry) })
		})
		out.Append([]byte("\r\n"))
	}
	out.Append([]byte("END\r\n"))
}

func appendValueHeader(dst, key []byte, flags uint32, length int) []byte {
	dst = append(dst, "VALUE "...)
	dst = append(dst, key...)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(flags), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(length), 10)
	dst = append(dst, "\r\n"...)
	return dst
}

func appendValueHeaderCAS(dst, key []byte, flags uint32, length int, cas uint64) []byte {
	dst = append(dst, "VALUE "...)
	dst = append(dst, key...)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(flags), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(length), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, cas, 10)
	dst = append(dst, "\r\n"...)
	return dst
}

type storeKind int

const (
	storeSet storeKind = iota
	storeAdd
	storeReplace
	storeAppend
	storePrepend
	storeCas
)

func (ex *Executor) execStore(cmd *protocol.Command, out *iobuf.Buffer, now int64, kind storeKind) {
	key := []byte(cmd.Keys[0])
	data := make([]byte, cmd.Bytes)
	iobuf.CopyFromRef(cmd.Data, data)

	p, hash := ex.Table.PartitionOf(key)
	var reply string

	p.Do(func() {
		existing := p.Lookup(key, hash, now)
		defer func() {
			if existing != nil {
				p.Finish(existing)
			}
		}()

		switch kind {
		case storeAdd:
			if existing != nil {
				reply = "NOT_STORED\r\n"
				return
			}
		case storeReplace:
			if existing == nil {
				reply = "NOT_STORED\r\n"
				return
			}
		case storeAppend, storePrepend:
			if existing == nil {
				reply = "NOT_STORED\r\n"
				return
			}
			if kind == storeAppend {
				data = concat(existing.Value, data)
			} else {
				data = concat(data, existing.Value)
			}
		case storeCas:
			if existing == nil {
				reply = "NOT_FOUND\r\n"
				return
			}
			if existing.CAS != cmd.CAS {
				reply = "EXISTS\r\n"
				return
			}
		}

		if existing != nil {
			res, _ := p.Update(key, hash, data, cmd.Flags, cmd.Exptime, 0, now)
			if res != cache.UpdateOK {
				reply = "NOT_STORED\r\n"
				return
			}
		} else {
			e := p.Create(key, data, cmd.Flags, cmd.Exptime)
			p.Insert(e)
			p.Finish(e) // release Create's refcount now that Insert has linked it
		}
		ex.stats.Sets++
		reply = "STORED\r\n"
	})

	if !cmd.Noreply {
		out.Append([]byte(reply))
	}
}

func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func (ex *Executor) execIncrDecr(cmd *protocol.Command, out *iobuf.Buffer, now int64, sign int64) {
	key := []byte(cmd.Keys[0])
	p, hash := ex.Table.PartitionOf(key)
	var reply string

	p.Do(func() {
		e := p.Lookup(key, hash, now)
		if e == nil {
			reply = "NOT_FOUND\r\n"
			return
		}
		defer p.Finish(e)

		n, err := strconv.ParseUint(string(e.Value), 10, 64)
		if err != nil {
			reply = "CLIENT_ERROR cannot increment or decrement non-numeric value\r\n"
			return
		}

		var next uint64
		if sign > 0 {
			next = n + cmd.Delta
		} else if cmd.Delta > n {
			next = 0
		} else {
			next = n - cmd.Delta
		}

		newValue := []byte(strconv.FormatUint(next, 10))
		_, _ = p.Update(key, hash, newValue, e.Flags, e.ExpireAt, 0, now)
		reply = strconv.FormatUint(next, 10) + "\r\n"
	})

	if !cmd.Noreply {
		out.Append([]byte(reply))
	}
}

func (ex *Executor) execDelete(cmd *protocol.Command, out *iobuf.Buffer, now int64) {
	key := []byte(cmd.Keys[0])
	p, hash := ex.Table.PartitionOf(key)
	var reply string

	p.Do(func() {
		if p.Delete(key, hash, now) != nil {
			ex.stats.Deletes++
			reply = "DELETED\r\n"
		} else {
			reply = "NOT_FOUND\r\n"
		}
	})

	if !cmd.Noreply {
		out.Append([]byte(reply))
	}
}

func (ex *Executor) execFlushAll(cmd *protocol.Command, out *iobuf.Buffer, now int64) {
	for _, p := range ex.Table.All() {
		p.Do(func() {
			p.Flush(cmd.Exptime, now)
		})
	}
	if !cmd.Noreply {
		out.Append([]byte("OK\r\n"))
	}
}

func (ex *Executor) execStats(out *iobuf.Buffer) {
	var nentries int
	var volume int64
	for _, p := range ex.Table.All() {
		p.Do(func() {
			nentries += p.NEntries()
			volume += p.Volume()
		})
	}
	out.Printf("STAT curr_items %d\r\n", nentries)
	out.Printf("STAT bytes %d\r\n", volume)
	out.Printf("STAT cmd_get %d\r\n", ex.stats.Gets)
	out.Printf("STAT cmd_set %d\r\n", ex.stats.Sets)
	out.Printf("STAT get_hits %d\r\n", ex.stats.GetHits)
	out.Printf("STAT get_misses %d\r\n", ex.stats.GetMisses)
	out.Printf("STAT delete_hits %d\r\n", ex.stats.Deletes)
	out.Append([]byte("END\r\n"))
}
