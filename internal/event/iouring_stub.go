//go:build !(linux && giouring)

package event

import "fmt"

// newIOUringDispatcher is available when built with -tags giouring on
// Linux. Mirrors the teacher's internal/uring/iouring_stub.go: the io_uring
// backend is opt-in, and an operator who requests it without the build tag
// gets a clear error instead of a silent fallback.
func newIOUringDispatcher(maxEvents int) (Dispatcher, error) {
	return nil, fmt.Errorf("event: io_uring backend requires building with -tags giouring (and Linux); use BackendEpoll")
}
