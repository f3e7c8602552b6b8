package partcache

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the command-latency histogram buckets in
// nanoseconds. Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for a Server,
// supplementing spec.md's memcached "stats" reply with the latency
// histogram and connection counters original_source/src/memcache/stats.h
// does not expose over the wire but a production deployment still wants in
// its observability stack.
type Metrics struct {
	GetHits     atomic.Uint64
	GetMisses   atomic.Uint64
	Sets        atomic.Uint64
	Deletes     atomic.Uint64
	Evictions   atomic.Uint64
	EvictedBytes atomic.Uint64

	CommandErrors atomic.Uint64

	ConnsOpened atomic.Uint64
	ConnsClosed atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCommand records one executed command's outcome and latency.
func (m *Metrics) RecordCommand(latencyNs uint64, success bool) {
	if !success {
		m.CommandErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordGetHit records a cache hit on a get/gets.
func (m *Metrics) RecordGetHit(bytes uint64) {
	m.GetHits.Add(1)
}

// RecordGetMiss records a cache miss on a get/gets.
func (m *Metrics) RecordGetMiss() {
	m.GetMisses.Add(1)
}

// RecordEviction records a CLOCK-evicted entry reclaiming bytes bytes.
func (m *Metrics) RecordEviction(bytes uint64) {
	m.Evictions.Add(1)
	m.EvictedBytes.Add(bytes)
}

// RecordConnOpen/RecordConnClose track connection lifecycle counts.
func (m *Metrics) RecordConnOpen()  { m.ConnsOpened.Add(1) }
func (m *Metrics) RecordConnClose() { m.ConnsClosed.Add(1) }

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the server as stopped, freezing uptime calculations.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics with derived rates.
type MetricsSnapshot struct {
	GetHits      uint64
	GetMisses    uint64
	Sets         uint64
	Deletes      uint64
	Evictions    uint64
	EvictedBytes uint64

	CommandErrors uint64

	ConnsOpened uint64
	ConnsClosed uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	HitRate float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		GetHits:       m.GetHits.Load(),
		GetMisses:     m.GetMisses.Load(),
		Sets:          m.Sets.Load(),
		Deletes:       m.Deletes.Load(),
		Evictions:     m.Evictions.Load(),
		EvictedBytes:  m.EvictedBytes.Load(),
		CommandErrors: m.CommandErrors.Load(),
		ConnsOpened:   m.ConnsOpened.Load(),
		ConnsClosed:   m.ConnsClosed.Load(),
	}

	totalGets := snap.GetHits + snap.GetMisses
	if totalGets > 0 {
		snap.HitRate = float64(snap.GetHits) / float64(totalGets) * 100.0
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset zeroes all counters, used by tests that assert on deltas.
func (m *Metrics) Reset() {
	m.GetHits.Store(0)
	m.GetMisses.Store(0)
	m.Sets.Store(0)
	m.Deletes.Store(0)
	m.Evictions.Store(0)
	m.EvictedBytes.Store(0)
	m.CommandErrors.Store(0)
	m.ConnsOpened.Store(0)
	m.ConnsClosed.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer is the metrics sink a Server drives on every command and
// connection lifecycle event; internal/interfaces.Observer mirrors this
// exactly so internal packages can accept it without importing the
// top-level package.
type Observer interface {
	ObserveCommand(cmd string, latencyNs uint64, success bool)
	ObserveGetHit(bytes uint64)
	ObserveGetMiss()
	ObserveEviction(bytes uint64)
	ObserveConnOpen()
	ObserveConnClose()
}

// NoOpObserver discards every event. A zero Config does not use it: New
// wraps Metrics in a MetricsObserver unless Config.Observer is set, so
// callers wanting to disable metrics entirely can set Config.Observer to
// NoOpObserver{}.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCommand(string, uint64, bool) {}
func (NoOpObserver) ObserveGetHit(uint64)                {}
func (NoOpObserver) ObserveGetMiss()                     {}
func (NoOpObserver) ObserveEviction(uint64)              {}
func (NoOpObserver) ObserveConnOpen()                    {}
func (NoOpObserver) ObserveConnClose()                   {}

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCommand(cmd string, latencyNs uint64, success bool) {
	o.metrics.RecordCommand(latencyNs, success)
}

func (o *MetricsObserver) ObserveGetHit(bytes uint64) { o.metrics.RecordGetHit(bytes) }
func (o *MetricsObserver) ObserveGetMiss()             { o.metrics.RecordGetMiss() }
func (o *MetricsObserver) ObserveEviction(bytes uint64) { o.metrics.RecordEviction(bytes) }
func (o *MetricsObserver) ObserveConnOpen()            { o.metrics.RecordConnOpen() }
func (o *MetricsObserver) ObserveConnClose()           { o.metrics.RecordConnClose() }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = NoOpObserver{}
