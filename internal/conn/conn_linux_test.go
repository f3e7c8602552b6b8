//go:build linux

package conn

import (
	"context"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/coreware-labs/partcache/internal/cache"
	"github.com/coreware-labs/partcache/internal/command"
	"github.com/coreware-labs/partcache/internal/event"
)

// fakeDispatcher satisfies event.Dispatcher well enough for Conn's
// Modify/Unregister calls during a test; Register/Pump/Close are unused
// here since the test drives Readable/Writable directly instead of
// through a real event loop.
type fakeDispatcher struct {
	modifyCalls     int
	lastEvents      event.IOEvents
	unregisterCalls int
}

func (f *fakeDispatcher) Register(fd int, events event.IOEvents, oneshot bool, cb event.Handler) error {
	return nil
}
func (f *fakeDispatcher) Modify(fd int, events event.IOEvents, oneshot bool) error {
	f.modifyCalls++
	f.lastEvents = events
	return nil
}
func (f *fakeDispatcher) Unregister(fd int) error {
	f.unregisterCalls++
	return nil
}
func (f *fakeDispatcher) Pump(ctx context.Context) error {
	return nil
}
func (f *fakeDispatcher) Close() error { return nil }

func newTestExecutor() *command.Executor {
	tbl := cache.NewTable(cache.Config{
		Partitions:  1,
		VolumeTotal: 1 << 20,
		NewEngine:   func(int) cache.Engine { return cache.NewLockEngine() },
	})
	return command.New(tbl, nil, "test")
}

func TestConnReadsParsesAndRepliesOverSocketpair(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	clientFD, serverFD := fds[0], fds[1]
	defer unix.Close(clientFD)

	if err := unix.SetNonblock(serverFD, true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}

	c := New(serverFD, newTestExecutor(), nil, nil)
	d := &fakeDispatcher{}

	if _, err := unix.Write(clientFD, []byte("set foo 0 0 3\r\nbar\r\n")); err != nil {
		t.Fatalf("client write: %v", err)
	}

	c.Readable(d)

	buf := make([]byte, 256)
	n, err := unix.Read(clientFD, buf)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if got := string(buf[:n]); got != "STORED\r\n" {
		t.Fatalf("reply = %q, want STORED", got)
	}
}

func TestConnClosesOnQuit(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	clientFD, serverFD := fds[0], fds[1]
	defer unix.Close(clientFD)

	if err := unix.SetNonblock(serverFD, true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}

	closed := false
	c := New(serverFD, newTestExecutor(), nil, nil)
	c.OnClose(func() { closed = true })
	d := &fakeDispatcher{}

	if _, err := unix.Write(clientFD, []byte("quit\r\n")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	c.Readable(d)

	if !closed {
		t.Fatal("expected connection to close after quit")
	}
}
