package cache

// Housekeep runs one step of whatever background work the partition
// currently needs — a stride step if striding, an eviction step if
// evicting — under the partition's engine. Spec.md §3 allows "at most one
// striding and one evicting task per partition"; since Do already
// serializes all partition access, a single Housekeep call per partition
// per runtime tick satisfies that without any extra bookkeeping.
func (p *Partition) Housekeep() {
	p.Do(func() {
		if p.striding {
			p.StrideStep()
		}
		if p.evicting {
			p.EvictOne()
		}
	})
}
