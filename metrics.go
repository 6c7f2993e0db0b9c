package sessiongate

import "sync/atomic"

// MetricID identifies one flow counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed credential checks.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins rejected by an active lockout.
	MetricLoginRateLimited
	// MetricLockoutActivated counts lockout flag activations.
	MetricLockoutActivated
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts, reuse included.
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts stolen-token reuse detections.
	MetricRefreshReuseDetected
	// MetricRefreshRateLimited counts refreshes rejected by the throttle.
	MetricRefreshRateLimited
	// MetricSessionCreated counts stored refresh sessions.
	MetricSessionCreated
	// MetricSessionRevoked counts sessions removed through the inventory.
	MetricSessionRevoked
	// MetricLogout counts logout operations.
	MetricLogout
	metricIDCount
)

const cacheLineSize = 64

// Counters are padded to a cache line each so concurrent flows bumping
// different metrics never share one.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the engine's flow counters. A nil or disabled Metrics
// turns every operation into a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates the counter set. Disabled metrics stay allocated so
// callers never nil-check.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counting is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc bumps the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. The copy is not atomic across counters;
// individual reads are.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	if m == nil || !m.enabled {
		return s
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
