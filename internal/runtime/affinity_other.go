//go:build !linux

package runtime

import (
	goruntime "runtime"

	"github.com/coreware-labs/partcache/internal/logging"
)

// lockToCPU is a no-op on non-Linux platforms: CPU pinning (spec.md §5) is a
// Linux-specific optimization, and the runtime still functions correctly
// without it, just without the false-sharing guarantees it buys on Linux.
func lockToCPU(id int, log *logging.Logger) {
	goruntime.LockOSThread()
	log.Debug("CPU affinity pinning unavailable on this platform", "cpu", id)
}
