package authkeep

import "sync/atomic"

// MetricID enumerates the engine's in-process counters.
type MetricID uint16

const (
	// MetricTwoFactorSetup counts setup calls that minted a credential.
	MetricTwoFactorSetup MetricID = iota
	// MetricTwoFactorEnabled counts credentials confirmed by a first verify.
	MetricTwoFactorEnabled
	// MetricVerifySuccess counts accepted login-time codes, either factor.
	MetricVerifySuccess
	// MetricVerifyFailure counts rejected login-time codes.
	MetricVerifyFailure
	// MetricVerifyRateLimited counts verifications refused by the limiter.
	MetricVerifyRateLimited
	// MetricRecoveryCodeUsed counts consumed recovery codes.
	MetricRecoveryCodeUsed
	// MetricSessionRegistered counts sessions added to the registry.
	MetricSessionRegistered
	// MetricSessionRevoked counts sessions newly flipped to revoked.
	MetricSessionRevoked
	// MetricSentinelSignOut counts sign-outs triggered by the sentinel.
	MetricSentinelSignOut
	// MetricPasswordExpiryCheck counts completed expiry policy checks.
	MetricPasswordExpiryCheck
	metricIDCount
)

type paddedCounter struct {
	value uint64
	_     [56]byte
}

// Metrics holds lock-free counters. A nil or disabled Metrics is a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics builds the counter set; disabled metrics cost one branch per Inc.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counters are being collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter. Safe for concurrent use.
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

// Snapshot copies all counters at once.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
