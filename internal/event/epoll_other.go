//go:build !linux

package event

import "fmt"

// newEpollDispatcher is only implemented on Linux; partcache's event loop
// is a Linux-specific component (spec.md §6 names epoll/io_uring as the
// only two backends, both Linux kernel facilities).
func newEpollDispatcher(maxEvents int) (Dispatcher, error) {
	return nil, fmt.Errorf("event: epoll backend requires Linux")
}
