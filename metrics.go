package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or latency histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	// MetricLoginLocked counts logins rejected because the identity is locked out.
	MetricLoginLocked
	MetricLoginRateLimited
	// MetricRateLimitHit counts every rejection by the per-client gate, login or not.
	MetricRateLimitHit
	MetricAuthorizeSuccess
	MetricAuthorizeDenied
	MetricTokenInvalid
	MetricTokenExpired
	MetricSessionCreated
	MetricSessionExpired
	MetricLogout
	MetricPasswordResetRequest
	MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	MetricLoginLatency
	MetricAuthorizeLatency
	metricIDCount
)

// LatencyBounds are the histogram upper bounds. A final +Inf bucket
// catches everything slower.
var LatencyBounds = []time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const histBucketCount = 8

// latencyMetrics lists the histogram IDs; their position is their slot.
var latencyMetrics = [...]MetricID{MetricLoginLatency, MetricAuthorizeLatency}

type paddedCounter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics is a fixed set of lock-free counters and coarse latency histograms.
// A nil or disabled *Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	latency       [len(latencyMetrics)][histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of [Metrics]. Histogram buckets are
// non-cumulative and follow [LatencyBounds] plus +Inf.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount || latencySlot(id) >= 0 {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d in the histogram for id. Only latency metrics accept
// observations.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency {
		return
	}
	slot := latencySlot(id)
	if slot < 0 {
		return
	}
	m.latency[slot][bucketIndex(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if latencySlot(id) < 0 {
			s.Counters[id] = m.counters[id].Load()
		}
	}
	if m.enableLatency {
		for slot, id := range latencyMetrics {
			buckets := make([]uint64, histBucketCount)
			for i := range buckets {
				buckets[i] = m.latency[slot][i].Load()
			}
			s.Histograms[id] = buckets
		}
	}
	return s
}

func latencySlot(id MetricID) int {
	for i, l := range latencyMetrics {
		if l == id {
			return i
		}
	}
	return -1
}

func bucketIndex(d time.Duration) int {
	for i, bound := range LatencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBounds)
}
