// Package event implements the event dispatcher abstraction from spec.md
// §4.6 (C6): the primary runtime's socket poller is pluggable between two
// backends exposing the same "poll with timeout, deliver readiness"
// contract — epoll (always available on Linux) and io_uring POLL_ADD
// (opt-in, built with -tags giouring).
//
// Grounded on joeycumines-go-utilpkg/eventloop's FastPoller (direct fd
// array indexing, version-gated poll-then-dispatch) for the epoll backend's
// shape, and the teacher's internal/uring Ring/Result interface split
// (iouring.go / iouring_stub.go gated by the giouring build tag) for how the
// io_uring backend is wired in only when built with that tag.
package event

import (
	"context"
	"errors"
)

// IOEvents is a bitmask of readiness conditions, shared by both backends.
type IOEvents uint32

const (
	Read IOEvents = 1 << iota
	Write
	Error
	Hangup
)

// Handler is invoked with the readiness mask observed for one registered
// fd. oneshot registrations are automatically removed before the handler
// runs.
type Handler func(events IOEvents)

// ErrClosed is returned by any Dispatcher method after Close.
var ErrClosed = errors.New("event: dispatcher closed")

// ErrNotRegistered is returned by Modify/Unregister for an unknown fd.
var ErrNotRegistered = errors.New("event: fd not registered")

// Dispatcher is the capability spec.md §9 calls out: two backends
// (epoll, io_uring POLL_ADD) implement it identically so internal/runtime's
// dealer can pump whichever one was selected at boot without caring which.
type Dispatcher interface {
	// Register begins monitoring fd for events, invoking cb on readiness.
	// If oneshot is true the registration is removed before cb is called
	// and must be re-armed by the caller via a fresh Register (Modify
	// reports ErrNotRegistered once a oneshot registration has fired).
	Register(fd int, events IOEvents, oneshot bool, cb Handler) error

	// Modify changes the event mask (and oneshot flag) for a registered fd.
	Modify(fd int, events IOEvents, oneshot bool) error

	// Unregister stops monitoring fd.
	Unregister(fd int) error

	// Pump blocks until at least one event is ready or the context's
	// deadline elapses (with no deadline it waits indefinitely; canceling
	// ctx does not interrupt a wait in progress), dispatching ready events'
	// handlers inline before returning. The epoll backend skips dispatch
	// for a wait during which registrations changed, leaving those events
	// to the next call. It never returns an error purely for "nothing
	// became ready before the deadline."
	Pump(ctx context.Context) error

	// Close releases the backend's kernel resources. Pending registrations
	// are discarded without invoking their handlers.
	Close() error
}

// Backend names a selectable Dispatcher implementation (spec.md §6's
// `-event-backend` flag).
type Backend string

const (
	BackendEpoll   Backend = "epoll"
	BackendIOUring Backend = "io_uring"
)

// New constructs the Dispatcher for the named backend. BackendIOUring is
// only available in binaries built with -tags giouring; otherwise it
// returns an error directing the operator to BackendEpoll.
func New(backend Backend, maxEvents int) (Dispatcher, error) {
	if maxEvents <= 0 {
		maxEvents = 512
	}
	switch backend {
	case BackendEpoll, "":
		return newEpollDispatcher(maxEvents)
	case BackendIOUring:
		return newIOUringDispatcher(maxEvents)
	default:
		return nil, errors.New("event: unknown backend " + string(backend))
	}
}
