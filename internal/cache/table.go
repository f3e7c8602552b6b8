package cache

import (
	"github.com/coreware-labs/partcache/internal/logging"
)

// Table owns the set of partitions and routes keys to them (spec.md §3's
// Table, §4.8's coordinator). partition_of(key) = hash(key) & part_mask.
type Table struct {
	partitions []*Partition
	mask       uint32
	log        *logging.Logger
}

// Config configures a new Table.
type Config struct {
	Partitions  int   // rounded down to the nearest power of two
	VolumeTotal int64 // split equally across partitions
	NewEngine   func(partitionID int) Engine
	Log         *logging.Logger

	// OnEvict, if set, is invoked with an entry's reclaimed byte count each
	// time EvictOne reclaims it. Used to feed the server's Observer without
	// this package importing it.
	OnEvict func(bytes int64)
}

func roundDownPow2(n int) int {
	if n < 1 {
		return 1
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}

// NewTable builds a Table with cfg.Partitions partitions (rounded down to a
// power of two), each given an equal share of cfg.VolumeTotal bytes and its
// own Engine from cfg.NewEngine.
func NewTable(cfg Config) *Table {
	n := roundDownPow2(cfg.Partitions)
	volumePer := cfg.VolumeTotal / int64(n)
	log := cfg.Log
	if log == nil {
		log = logging.Default()
	}

	t := &Table{
		partitions: make([]*Partition, n),
		mask:       uint32(n) - 1,
		log:        log,
	}
	for i := 0; i < n; i++ {
		p := NewPartition(i, volumePer, log)
		p.OnEvict = cfg.OnEvict
		if cfg.NewEngine != nil {
			p.Engine = cfg.NewEngine(i)
		} else {
			p.Engine = NewLockEngine()
		}
		t.partitions[i] = p
	}
	return t
}

// N reports the partition count.
func (t *Table) N() int { return len(t.partitions) }

// PartitionOf returns the partition and hash owning key (spec.md §4.8).
func (t *Table) PartitionOf(key []byte) (*Partition, uint32) {
	h := hashKey(key)
	idx := h & t.mask
	return t.partitions[idx], h
}

// Partition returns partition i directly (used by stats/admin paths and by
// Engine wiring, which needs a stable ID → engine mapping built
// alongside the table).
func (t *Table) Partition(i int) *Partition { return t.partitions[i] }

// All returns every partition, in index order, for housekeeping tasks
// (striding/eviction schedulers, the stats command).
func (t *Table) All() []*Partition { return t.partitions }
