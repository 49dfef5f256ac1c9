package authgate

import (
	"time"

	"github.com/authgate/authgate/internal/metrics"
)

// MetricID identifies a single engine metric.
type MetricID int

// Counter metrics.
const (
	MetricFirstFactorSuccess MetricID = iota
	MetricFirstFactorFailure
	MetricFirstFactorRegulated
	MetricTOTPSuccess
	MetricTOTPFailure
	MetricTOTPRegistered
	MetricDeviceSignSuccess
	MetricDeviceSignFailure
	MetricDeviceRegistered
	MetricDeviceRegisterFailure
	MetricDuoSuccess
	MetricDuoFailure
	MetricTokenIssued
	MetricTokenConsumed
	MetricTokenRejected
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricLogout
	MetricAccessGranted
	MetricAccessDenied

	metricCounterCount
)

// Histogram metrics, in a separate ID space starting after the counters.
const (
	MetricFirstFactorLatency MetricID = metricCounterCount + iota

	metricIDCount
)

const metricHistogramCount = int(metricIDCount - metricCounterCount)

// MetricsSnapshot is a point-in-time copy of all engine metrics. Histogram
// values are per-bucket (non-cumulative) counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// MetricsSnapshot returns the current metric values. With metrics disabled
// it returns an empty snapshot.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	snap := e.metrics.Snapshot()

	out := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, len(snap.Counters)),
		Histograms: make(map[MetricID][]uint64, len(snap.Histograms)),
	}
	for i, v := range snap.Counters {
		out.Counters[MetricID(i)] = v
	}
	for i, buckets := range snap.Histograms {
		out.Histograms[metricCounterCount+MetricID(i)] = buckets
	}
	return out
}

// AuditDropped reports audit events dropped due to dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(int(id))
}

func (e *Engine) metricObserve(id MetricID, elapsed time.Duration) {
	e.metrics.Observe(int(id-metricCounterCount), elapsed.Seconds())
}

func newEngineMetrics(cfg MetricsConfig) *metrics.Metrics {
	return metrics.New(metrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	}, int(metricCounterCount), metricHistogramCount)
}
