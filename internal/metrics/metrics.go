package metrics

import "sync/atomic"

// NumBuckets is the fixed bucket count of every latency histogram.
const NumBuckets = 8

// bucketBounds are the upper bounds in seconds; the last bucket is +Inf.
var bucketBounds = [NumBuckets - 1]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// Config controls which parts of the metric system are active.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// counterSlot pads each counter to its own cache line to avoid false
// sharing between hot counters.
type counterSlot struct {
	value uint64
	_     [7]uint64
}

type histogramSlot struct {
	buckets [NumBuckets]uint64
	count   uint64
}

// Metrics is a fixed-size set of counters and latency histograms. The
// zero-size instance returned for a disabled config is safe to use; all
// write operations become no-ops.
type Metrics struct {
	enabled bool
	latency bool

	counters   []counterSlot
	histograms []histogramSlot
}

// New creates a metric set with the given number of counter and histogram
// slots.
func New(cfg Config, counterCount, histogramCount int) *Metrics {
	if !cfg.Enabled {
		return &Metrics{}
	}
	return &Metrics{
		enabled:    true,
		latency:    cfg.EnableLatency,
		counters:   make([]counterSlot, counterCount),
		histograms: make([]histogramSlot, histogramCount),
	}
}

// Inc atomically increments counter id. Out-of-range ids are ignored.
func (m *Metrics) Inc(id int) {
	if m == nil || !m.enabled || id < 0 || id >= len(m.counters) {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample in seconds for histogram id.
func (m *Metrics) Observe(id int, seconds float64) {
	if m == nil || !m.enabled || !m.latency || id < 0 || id >= len(m.histograms) {
		return
	}

	bucket := NumBuckets - 1
	for i, bound := range bucketBounds {
		if seconds <= bound {
			bucket = i
			break
		}
	}

	atomic.AddUint64(&m.histograms[id].buckets[bucket], 1)
	atomic.AddUint64(&m.histograms[id].count, 1)
}

// LatencyEnabled reports whether histograms record samples.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enabled && m.latency
}

// Snapshot is a point-in-time copy of all metric values. Histogram values
// are per-bucket (non-cumulative) counts.
type Snapshot struct {
	Counters   []uint64
	Histograms [][]uint64
}

// Snapshot copies the current values. Reads are atomic per slot; the
// snapshot as a whole is not a consistent cut, which is fine for
// monotonically increasing counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{}
	}

	snap := Snapshot{
		Counters:   make([]uint64, len(m.counters)),
		Histograms: make([][]uint64, len(m.histograms)),
	}
	for i := range m.counters {
		snap.Counters[i] = atomic.LoadUint64(&m.counters[i].value)
	}
	for i := range m.histograms {
		buckets := make([]uint64, NumBuckets)
		for j := 0; j < NumBuckets; j++ {
			buckets[j] = atomic.LoadUint64(&m.histograms[i].buckets[j])
		}
		snap.Histograms[i] = buckets
	}
	return snap
}
