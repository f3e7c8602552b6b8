//go:build linux && giouring

package event

import (
	"context"
	"sync"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"
)

// iouringDispatcher implements Dispatcher by resubmitting an IORING_OP_POLL_ADD
// SQE per registered fd and draining completions from the ring's CQ, the
// same readiness-only use of io_uring the teacher's internal/uring package
// used for ublk's URING_CMD submissions (submit, then block for
// completions) — here POLL_ADD stands in for the device command.
type iouringDispatcher struct {
	mu     sync.Mutex
	ring   *giouring.Ring
	fds    map[int]*fdEntry
	closed bool

	wakeR, wakeW int
}

type fdEntry struct {
	events  IOEvents
	oneshot bool
	cb      Handler
}

func newIOUringDispatcher(maxEvents int) (Dispatcher, error) {
	ring, err := giouring.CreateRing(uint32(maxEvents))
	if err != nil {
		return nil, err
	}
	d := &iouringDispatcher{ring: ring, fds: make(map[int]*fdEntry)}

	r, w, err := selfPipe()
	if err != nil {
		ring.QueueExit()
		return nil, err
	}
	d.wakeR, d.wakeW = r, w
	if err := d.registerLocked(r, Read, false, func(IOEvents) { d.drainWake() }); err != nil {
		ring.QueueExit()
		unix.Close(r)
		unix.Close(w)
		return nil, err
	}
	return d, nil
}

func (d *iouringDispatcher) drainWake() {
	var buf [64]byte
	for {
		n, err := unix.Read(d.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (d *iouringDispatcher) WakeUp() {
	unix.Write(d.wakeW, []byte{0})
}

func pollMask(events IOEvents) uint32 {
	var m uint32
	if events&Read != 0 {
		m |= unix.POLLIN
	}
	if events&Write != 0 {
		m |= unix.POLLOUT
	}
	return m
}

func (d *iouringDispatcher) submitPoll(fd int, entry *fdEntry) error {
	sqe := d.ring.GetSQE()
	if sqe == nil {
		if _, err := d.ring.Submit(); err != nil {
			return err
		}
		sqe = d.ring.GetSQE()
		if sqe == nil {
			return ErrClosed
		}
	}
	sqe.PrepPollAdd(uint64(fd), pollMask(entry.events))
	sqe.UserData = uint64(fd)
	return nil
}

func (d *iouringDispatcher) Register(fd int, events IOEvents, oneshot bool, cb Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return d.registerLocked(fd, events, oneshot, cb)
}

func (d *iouringDispatcher) registerLocked(fd int, events IOEvents, oneshot bool, cb Handler) error {
	entry := &fdEntry{events: events, oneshot: oneshot, cb: cb}
	d.fds[fd] = entry
	if err := d.submitPoll(fd, entry); err != nil {
		delete(d.fds, fd)
		return err
	}
	_, err := d.ring.Submit()
	return err
}

func (d *iouringDispatcher) Modify(fd int, events IOEvents, oneshot bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.fds[fd]
	if !ok {
		return ErrNotRegistered
	}
	entry.events, entry.oneshot = events, oneshot
	if err := d.submitPoll(fd, entry); err != nil {
		return err
	}
	_, err := d.ring.Submit()
	return err
}

func (d *iouringDispatcher) Unregister(fd int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fds[fd]; !ok {
		return ErrNotRegistered
	}
	delete(d.fds, fd)
	return nil
}

func (d *iouringDispatcher) Pump(ctx context.Context) error {
	var timeout *unix.Timespec
	if deadline, ok := ctx.Deadline(); ok {
		ts := unix.NsecToTimespec(int64(timeUntilMs(deadline)) * 1e6)
		timeout = &ts
	}

	cqe, err := d.ring.WaitCQETimeout(timeout)
	if err != nil {
		if err == unix.ETIME || err == unix.EINTR {
			return nil
		}
		return err
	}

	d.mu.Lock()
	fd := int(cqe.UserData)
	entry, ok := d.fds[fd]
	d.ring.CQESeen(cqe)
	if ok && !entry.oneshot {
		d.submitPoll(fd, entry)
		d.ring.Submit()
	} else if ok {
		delete(d.fds, fd)
	}
	d.mu.Unlock()

	if ok && entry.cb != nil {
		events := IOEvents(0)
		if cqe.Res&unix.POLLIN != 0 {
			events |= Read
		}
		if cqe.Res&unix.POLLOUT != 0 {
			events |= Write
		}
		entry.cb(events)
	}
	return nil
}

func (d *iouringDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	unix.Close(d.wakeR)
	unix.Close(d.wakeW)
	d.ring.QueueExit()
	return nil
}
