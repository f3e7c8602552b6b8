package cache

import "github.com/coreware-labs/partcache/internal/constants"

// StrideStep processes up to STRIDE_WIDTH source buckets, splitting each
// one's entries between its old slot src and the new slot at src plus half
// the length of a doubled bucket array (spec.md §4.7's incremental rehash). The caller
// (the partition's striding task) calls this repeatedly from inside the
// partition's engine section until it returns false, at which point
// striding is complete and the partition has moved on to its next
// generation of buckets.
//
// Grounded on original_source/src/memcache/table.c's stride loop; unlike
// the C version's reserved-then-committed array, the doubled half here is
// allocated up front on the first call (a fresh slice of twice the length,
// with the old buckets copied into it, so there is no separate "commit"
// step to model).
func (p *Partition) StrideStep() bool {
	if !p.striding {
		return false
	}
	if p.used == 0 {
		p.growBuckets()
	}

	width := constants.StrideWidth
	size := uint32(len(p.buckets))
	end := p.used + uint32(width)
	if end > size/2 {
		end = size / 2
	}

	oldMask := p.mask >> 1
	for src := p.used; src < end; src++ {
		p.splitBucket(src, oldMask)
	}
	p.used = end

	if p.used >= size/2 {
		p.striding = false
		p.used = 0
	}
	return p.striding
}

// growBuckets doubles the bucket array length and mask, leaving the new
// half's slots nil until StrideStep migrates entries into them.
func (p *Partition) growBuckets() {
	newSize := len(p.buckets) * 2
	if newSize == 0 {
		newSize = 2
	}
	grown := make([]*Entry, newSize)
	copy(grown, p.buckets)
	p.buckets = grown
	p.mask = uint32(newSize) - 1
}

// splitBucket partitions source bucket src's chain by hash&mask into the
// unchanged source slot and the new target slot at src+len(old half).
func (p *Partition) splitBucket(src uint32, oldMask uint32) {
	var stay, move *Entry
	e := p.buckets[src]
	for e != nil {
		next := e.bucketNext
		if e.hash&p.mask == src {
			e.bucketNext = stay
			stay = e
		} else {
			e.bucketNext = move
			move = e
		}
		e = next
	}
	p.buckets[src] = stay
	p.buckets[src+uint32(len(p.buckets))/2] = move
}
