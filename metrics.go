package routegate

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram tracked by the engine.
type MetricID uint16

const (
	// MetricSignIn counts sessions established from auth events.
	MetricSignIn MetricID = iota
	// MetricIdentityChanged counts auth events that swapped the identity.
	MetricIdentityChanged
	// MetricTokenRefreshed counts same-identity token refreshes.
	MetricTokenRefreshed
	// MetricSignOut counts completed sign-outs.
	MetricSignOut
	// MetricSignOutFailed counts sign-outs whose remote call failed.
	MetricSignOutFailed
	// MetricResolutionSuccess counts role resolutions that settled cleanly.
	MetricResolutionSuccess
	// MetricResolutionFailure counts resolutions that failed upstream.
	MetricResolutionFailure
	// MetricResolutionTimeout counts resolutions lost to the deadline.
	MetricResolutionTimeout
	// MetricResolutionDiscarded counts stale results dropped by epoch checks.
	MetricResolutionDiscarded
	// MetricRoleFallbackApplied counts least-privilege defaults after failures.
	MetricRoleFallbackApplied
	// MetricHardStopFired counts hard-stop timer expirations.
	MetricHardStopFired
	// MetricDecisionRender counts authorizations that rendered.
	MetricDecisionRender
	// MetricDecisionLoading counts authorizations deferred to the interstitial.
	MetricDecisionLoading
	// MetricDecisionLoginRedirect counts redirects to the login page.
	MetricDecisionLoginRedirect
	// MetricDecisionForbidden counts redirects to the forbidden page.
	MetricDecisionForbidden
	// MetricFallbackAllowed counts live fallback checks that granted access.
	MetricFallbackAllowed
	// MetricFallbackDenied counts live fallback checks that denied access.
	MetricFallbackDenied
	// MetricFallbackFailed counts fallback rounds resolved by error or timeout.
	MetricFallbackFailed
	// MetricAuthorizeLatency is the end-to-end Authorize latency histogram.
	MetricAuthorizeLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps each slot on its own cache line so concurrent
// increments on different IDs do not false-share.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics stores lock-free counters and latency histograms for the engine.
// The write path is allocation-free.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
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

// Inc increments the counter for id. No-op when metrics are disabled.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample. Only the Authorize histogram is tracked.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricAuthorizeLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthorizeLatency].buckets[i])
		}
		s.Histograms[MetricAuthorizeLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
