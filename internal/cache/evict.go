package cache

// EvictOne advances the CLOCK hand by at most one cold entry, reclaiming it
// if found (spec.md §4.7's CLOCK eviction). It returns false once
// p.volume <= p.volumeMax, at which point the caller (the partition's
// eviction task) should clear p.evicting and stop.
//
// Grounded on original_source/src/memcache/table.c's CLOCK sweep and the
// bit-decay scan in other_examples/*aistore*cache_engine_v2.go.
func (p *Partition) EvictOne() bool {
	if p.volume <= p.volumeMax {
		p.evicting = false
		return false
	}
	if p.clockHand == nil {
		// Nothing left to reclaim; further eviction would be a no-op spin.
		p.evicting = false
		return false
	}

	start := p.clockHand
	for {
		e := p.clockHand
		if e.clockBit {
			e.clockBit = false
			p.clockHand = e.clockNext
			if p.clockHand == nil {
				p.clockHand = p.clockHead
			}
			if p.clockHand == start {
				// Full sweep with everything recently touched: give up this
				// round rather than spin forever; caller's task yields and
				// retries on its next turn.
				return true
			}
			continue
		}
		if e.refcount > 0 {
			// Live reference in flight (its bit is already clear); skip it.
			// It becomes reclaimable on a later pass once released.
			p.clockHand = e.clockNext
			if p.clockHand == nil {
				p.clockHand = p.clockHead
			}
			if p.clockHand == start {
				return true
			}
			continue
		}
		reclaimed := entryVolume(e)
		p.remove(e)
		if p.OnEvict != nil {
			p.OnEvict(reclaimed)
		}
		return p.volume > p.volumeMax
	}
}
