//go:build linux

package event

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestEpollDispatcherDeliversReadiness(t *testing.T) {
	d, err := New(BackendEpoll, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	r, w := fds[0], fds[1]
	defer unix.Close(r)
	defer unix.Close(w)

	fired := make(chan IOEvents, 1)
	if err := d.Register(r, Read, false, func(ev IOEvents) { fired <- ev }); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := unix.Write(w, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Pump(ctx); err != nil {
		t.Fatalf("Pump: %v", err)
	}

	select {
	case ev := <-fired:
		if ev&Read == 0 {
			t.Fatalf("events = %v, want Read set", ev)
		}
	default:
		t.Fatal("handler was not invoked")
	}
}

func TestEpollDispatcherUnregister(t *testing.T) {
	d, err := New(BackendEpoll, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	if err := d.Register(fds[0], Read, false, func(IOEvents) {}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := d.Unregister(fds[0]); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if err := d.Unregister(fds[0]); err != ErrNotRegistered {
		t.Fatalf("second Unregister err = %v, want ErrNotRegistered", err)
	}
}

func TestEpollDispatcherPumpTimesOutWithoutReadiness(t *testing.T) {
	d, err := New(BackendEpoll, 16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Pump(ctx); err != nil {
		t.Fatalf("Pump: %v", err)
	}
}
