// Package cache implements the partitioned, self-evicting key/value store
// described in spec.md §3, §4.7, §4.8 (C7/C8): a hash-partitioned table of
// entries, each partition growing its bucket array by incremental striding
// and evicting cold entries with a CLOCK approximation rather than strict
// LRU.
//
// Grounded on original_source/src/memcache/table.c for the bucket/stride/
// CLOCK shape, and on the sharded-map layout in
// other_examples/*abiolaogu-MinIO*cache_engine_v3.go (per-shard counters,
// FNV hashing) and *ecache2.go (per-shard lock, CAS-style update). Where
// the original reserves virtual address space with mmap(PROT_NONE) and
// commits it on demand, this package grows plain Go slices instead — the
// reserve/commit split exists in C to avoid a realloc-and-copy of a huge
// array; Go's slice growth already amortizes that copy, so mimicking mmap
// here would add complexity without the benefit it buys in C (documented
// as an Open Question decision in DESIGN.md).
package cache

// Entry is one cached item. While Refcount > 0 it must not be reused for
// another key even if unlinked from its bucket (spec.md §3's Entry
// invariant) — a result in flight through a connection's transmit buffer
// holds a reference via a splice release callback.
type Entry struct {
	Key   []byte
	Value []byte
	Flags uint32
	CAS   uint64

	// ExpireAt is a Unix-second deadline; zero means "never expires."
	ExpireAt int64

	hash     uint32
	refcount int32
	clockBit bool
	void     bool // unlinked from its bucket, awaiting refcount drain

	bucketNext *Entry

	clockNext *Entry
	clockPrev *Entry
}

// Expired reports whether the entry's expiration deadline has passed as of
// now (Unix seconds).
func (e *Entry) Expired(now int64) bool {
	return e.ExpireAt != 0 && e.ExpireAt <= now
}

// ref increments the entry's reference count; pairs with Finish (spec.md
// §4.7's lookup/finish pair).
func (e *Entry) ref() { e.refcount++ }

// Live reports whether the entry still has outstanding references.
func (e *Entry) Live() bool { return e.refcount > 0 }
