package cache

import (
	"hash/fnv"

	"github.com/coreware-labs/partcache/internal/constants"
	"github.com/coreware-labs/partcache/internal/logging"
)

// hashKey implements spec.md §4.7's "Hashing: FNV-1a 32-bit."
func hashKey(key []byte) uint32 {
	h := fnv.New32a()
	h.Write(key)
	return h.Sum32()
}

// UpdateResult reports the outcome of Partition.Update.
type UpdateResult int

const (
	UpdateOK UpdateResult = iota
	UpdateCASMismatch
	UpdateNotFound
)

// Partition is one shard of the cache table (spec.md §3's Partition, §4.7's
// operation set). All of its methods assume they are invoked from inside
// the partition's chosen Engine section — they perform no locking
// of their own.
type Partition struct {
	ID int

	buckets []*Entry // power-of-two length; each slot heads a chain
	mask    uint32
	used    uint32 // buckets already migrated to the doubled array mid-stride
	striding bool

	nentries     int
	nentriesVoid int
	volume       int64
	volumeMax    int64
	evicting     bool

	clockHead, clockTail, clockHand *Entry

	casCounter uint64

	Log    *logging.Logger
	Engine Engine

	// OnEvict, if set, is invoked with an entry's reclaimed byte count
	// whenever EvictOne removes it. Nil in tests that don't care.
	OnEvict func(bytes int64)
}

// Do runs fn with exclusive access to the partition, via whichever Engine
// strategy this partition was built with (spec.md §4.7's "invoked via the
// partition's combiner or, in lock/delegate modes, under the partition's
// lock or from its owning runtime").
func (p *Partition) Do(fn func()) { p.Engine.Execute(fn) }

// NewPartition creates a partition with an initial single-bucket array and
// the given per-partition byte budget.
func NewPartition(id int, volumeMax int64, log *logging.Logger) *Partition {
	return &Partition{
		ID:        id,
		buckets:   make([]*Entry, 1),
		mask:      0,
		volumeMax: volumeMax,
		Log:       log.WithPartition(id),
	}
}

func (p *Partition) bucketIndex(hash uint32) uint32 {
	if p.striding && p.used > 0 {
		// Mid-stride: source buckets below `used` have been split into the
		// doubled array; the rest still hold entries for both halves, so
		// those are found at the old (halved-mask) index, per spec.md §4.7.
		if lo := hash & (p.mask >> 1); lo >= p.used {
			return lo
		}
	}
	return hash & p.mask
}

// Lookup finds the live, non-expired entry for key (spec.md §4.7 lookup).
// On a hit it increments the entry's refcount and sets its CLOCK bit; the
// caller must call Finish exactly once when done with the returned entry.
func (p *Partition) Lookup(key []byte, hash uint32, now int64) *Entry {
	idx := p.bucketIndex(hash)
	for e := p.buckets[idx]; e != nil; e = e.bucketNext {
		if e.hash == hash && string(e.Key) == string(key) {
			if e.Expired(now) {
				return nil
			}
			e.ref()
			e.clockBit = true
			return e
		}
	}
	return nil
}

// Finish releases a reference taken by Lookup. If this was the last
// reference to an entry already unlinked from its bucket (void), it clears
// the void accounting so nentriesVoid reflects entries actually still
// awaiting drain.
func (p *Partition) Finish(e *Entry) {
	e.refcount--
	if e.void && !e.Live() {
		e.void = false
		p.nentriesVoid--
	}
}

// Create allocates a fresh, uninserted entry with refcount 1 (spec.md §4.7
// create). The caller must Insert or Cancel it.
func (p *Partition) Create(key, value []byte, flags uint32, exptime int64) *Entry {
	k := make([]byte, len(key))
	copy(k, key)
	return &Entry{
		Key:      k,
		Value:    value,
		Flags:    flags,
		ExpireAt: exptime,
		hash:     hashKey(k),
		refcount: 1,
	}
}

// Cancel discards a Created-but-never-inserted entry.
func (p *Partition) Cancel(e *Entry) {
	e.refcount = 0
}

// Insert links a created entry into its bucket and the CLOCK ring, and
// assigns it the next CAS stamp. It sets the striding flag once the entry
// count exceeds ResizeThreshold per bucket and the evicting flag once the
// volume exceeds volumeMax; it does not rehash or evict anything itself
// (StrideStep and EvictOne do that work).
func (p *Partition) Insert(e *Entry) {
	idx := p.bucketIndex(e.hash)
	e.bucketNext = p.buckets[idx]
	p.buckets[idx] = e
	p.casCounter++
	e.CAS = p.casCounter

	p.clockLink(e)
	p.nentries++
	p.volume += entryVolume(e)

	if p.nentries > int(constants.ResizeThreshold)*len(p.buckets) {
		p.striding = true
	}
	if p.volume > p.volumeMax {
		p.evicting = true
	}
}

func entryVolume(e *Entry) int64 {
	return int64(len(e.Key) + len(e.Value))
}

func (p *Partition) clockLink(e *Entry) {
	if p.clockTail == nil {
		p.clockHead, p.clockTail = e, e
		p.clockHand = e
		return
	}
	p.clockTail.clockNext = e
	e.clockPrev = p.clockTail
	p.clockTail = e
}

func (p *Partition) clockUnlink(e *Entry) {
	if p.clockHand == e {
		p.clockHand = e.clockNext
	}
	if e.clockPrev != nil {
		e.clockPrev.clockNext = e.clockNext
	} else {
		p.clockHead = e.clockNext
	}
	if e.clockNext != nil {
		e.clockNext.clockPrev = e.clockPrev
	} else {
		p.clockTail = e.clockPrev
	}
	if p.clockHand == nil {
		p.clockHand = p.clockHead
	}
	e.clockNext, e.clockPrev = nil, nil
}

// unlinkBucket removes e from its bucket's chain.
func (p *Partition) unlinkBucket(e *Entry) {
	idx := p.bucketIndex(e.hash)
	cur := p.buckets[idx]
	if cur == e {
		p.buckets[idx] = e.bucketNext
		e.bucketNext = nil
		return
	}
	for cur != nil {
		if cur.bucketNext == e {
			cur.bucketNext = e.bucketNext
			e.bucketNext = nil
			return
		}
		cur = cur.bucketNext
	}
}

// remove fully unlinks e from both the bucket and the CLOCK ring and
// updates counters. If e still has outstanding references it is marked
// void rather than discarded; its bytes are released once the last
// reference drops (tracked by the caller holding the splice, which simply
// stops retaining it — Go's GC reclaims the backing array once nothing
// points to it).
func (p *Partition) remove(e *Entry) {
	p.unlinkBucket(e)
	p.clockUnlink(e)
	p.nentries--
	p.volume -= entryVolume(e)
	if e.Live() {
		e.void = true
		p.nentriesVoid++
	}
}

// Update replaces the value of the entry matching key, optionally requiring
// its CAS stamp to match casExpected (casExpected == 0 means unconditional,
// matching spec.md §4.10's plain set/replace/append/prepend path; cas
// passes a real stamp). It returns the outcome and the matched entry (nil
// when the key is absent or expired). Value is replaced wholesale, not
// mutated, so an in-flight reader keeps the slice it already holds.
func (p *Partition) Update(key []byte, hash uint32, newValue []byte, flags uint32, exptime int64, casExpected uint64, now int64) (UpdateResult, *Entry) {
	idx := p.bucketIndex(hash)
	for e := p.buckets[idx]; e != nil; e = e.bucketNext {
		if e.hash != hash || string(e.Key) != string(key) {
			continue
		}
		if e.Expired(now) {
			return UpdateNotFound, nil
		}
		if casExpected != 0 && e.CAS != casExpected {
			return UpdateCASMismatch, e
		}
		p.volume += int64(len(newValue)) - int64(len(e.Value))
		e.Value = newValue
		e.Flags = flags
		e.ExpireAt = exptime
		p.casCounter++
		e.CAS = p.casCounter
		return UpdateOK, e
	}
	return UpdateNotFound, nil
}

// Delete removes and returns the entry for key, or nil if absent/expired
// (spec.md §4.7 delete).
func (p *Partition) Delete(key []byte, hash uint32, now int64) *Entry {
	idx := p.bucketIndex(hash)
	for e := p.buckets[idx]; e != nil; e = e.bucketNext {
		if e.hash == hash && string(e.Key) == string(key) {
			if e.Expired(now) {
				return nil
			}
			p.remove(e)
			return e
		}
	}
	return nil
}

// Flush marks every entry expired as of exptime (spec.md §4.10 flush_all).
// exptime == 0 expires everything immediately.
func (p *Partition) Flush(exptime int64, now int64) {
	deadline := exptime
	if deadline == 0 {
		deadline = now
	}
	for e := p.clockHead; e != nil; e = e.clockNext {
		if e.ExpireAt == 0 || e.ExpireAt > deadline {
			e.ExpireAt = deadline
		}
	}
}

// NEntries, Volume, Evicting, Striding expose counters for the stats
// command (spec.md §4's supplemented stats reply).
func (p *Partition) NEntries() int   { return p.nentries }
func (p *Partition) Volume() int64   { return p.volume }
func (p *Partition) Evicting() bool  { return p.evicting }
func (p *Partition) Striding() bool  { return p.striding }
func (p *Partition) VolumeMax() int64 { return p.volumeMax }
