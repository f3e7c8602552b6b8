package partcache

import "github.com/coreware-labs/partcache/internal/constants"

// Re-export tuning defaults for callers constructing a Config without
// reaching into internal/constants directly.
const (
	DefaultVolume     = constants.DefaultVolume
	DefaultPartitions = constants.DefaultPartitions
	MaxKeyLen         = constants.MaxKeyLen
	DefaultWorkersMax = constants.DefaultWorkersMax
	RingCapacity      = constants.RingCapacity
)
