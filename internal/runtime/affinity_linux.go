//go:build linux

package runtime

import (
	goruntime "runtime"

	"golang.org/x/sys/unix"

	"github.com/coreware-labs/partcache/internal/logging"
)

// lockToCPU pins the calling OS thread to CPU id, per spec.md §5's "a fixed
// pool of OS threads (one per enabled CPU)". Grounded on the teacher's
// cpuAffinity helper in the (now-folded-in) internal/queue/runner.go, which
// used the same LockOSThread + SchedSetaffinity pairing for its per-queue
// goroutines.
func lockToCPU(id int, log *logging.Logger) {
	goruntime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(id)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		log.Warn("failed to set CPU affinity", "cpu", id, "err", err)
	}
}
