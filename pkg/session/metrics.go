package session

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Teardown reasons.
const (
	ReasonReleased = "released"
	ReasonDead     = "dead"
)

// Metrics provides Prometheus metrics for the session pool.
// All methods are nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	// CreatedTotal counts sessions established.
	CreatedTotal prometheus.Counter

	// DestroyedTotal counts sessions torn down, labeled by reason:
	// "released" or "dead".
	DestroyedTotal *prometheus.CounterVec

	// ReusedTotal counts acquires served by an existing pooled session.
	ReusedTotal prometheus.Counter

	// LivenessFailuresTotal counts pooled sessions that failed the echo check.
	LivenessFailuresTotal prometheus.Counter

	// EstablishFailuresTotal counts failed establishments by error code.
	EstablishFailuresTotal *prometheus.CounterVec

	// LiveGauge tracks sessions currently connected.
	LiveGauge prometheus.Gauge

	// DurationHistogram observes session lifetimes in seconds.
	DurationHistogram prometheus.Histogram
}

// NewMetrics creates session metrics and registers them with reg. If reg
// is nil the metrics are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smbkit",
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Total number of SMB sessions established",
		}),
		DestroyedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smbkit",
			Subsystem: "sessions",
			Name:      "destroyed_total",
			Help:      "Total number of SMB sessions torn down",
		}, []string{"reason"}),
		ReusedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smbkit",
			Subsystem: "sessions",
			Name:      "reused_total",
			Help:      "Acquires served by a pooled session",
		}),
		LivenessFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smbkit",
			Subsystem: "sessions",
			Name:      "liveness_failures_total",
			Help:      "Pooled sessions found dead on acquire",
		}),
		EstablishFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smbkit",
			Subsystem: "sessions",
			Name:      "establish_failures_total",
			Help:      "Session establishments that failed, by error code",
		}, []string{"code"}),
		LiveGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smbkit",
			Subsystem: "sessions",
			Name:      "live",
			Help:      "Current number of connected SMB sessions",
		}),
		DurationHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "smbkit",
			Subsystem: "sessions",
			Name:      "duration_seconds",
			Help:      "Lifetime of SMB sessions in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 20), // 10ms to ~87 minutes
		}),
	}

	if reg != nil {
		m.CreatedTotal = register(reg, m.CreatedTotal)
		m.DestroyedTotal = register(reg, m.DestroyedTotal)
		m.ReusedTotal = register(reg, m.ReusedTotal)
		m.LivenessFailuresTotal = register(reg, m.LivenessFailuresTotal)
		m.EstablishFailuresTotal = register(reg, m.EstablishFailuresTotal)
		m.LiveGauge = register(reg, m.LiveGauge)
		m.DurationHistogram = register(reg, m.DurationHistogram)
	}
	return m
}

// register adds c to reg. A collector registered earlier under the same
// descriptor, e.g. by a previous Manager in the same process, is reused.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) recordCreated() {
	if m == nil {
		return
	}
	m.CreatedTotal.Inc()
	m.LiveGauge.Inc()
}

func (m *Metrics) recordDestroyed(reason string, seconds float64) {
	if m == nil {
		return
	}
	m.DestroyedTotal.WithLabelValues(reason).Inc()
	m.LiveGauge.Dec()
	m.DurationHistogram.Observe(seconds)
}

func (m *Metrics) recordReused() {
	if m == nil {
		return
	}
	m.ReusedTotal.Inc()
}

func (m *Metrics) recordLivenessFailure() {
	if m == nil {
		return
	}
	m.LivenessFailuresTotal.Inc()
}

func (m *Metrics) recordEstablishFailure(code string) {
	if m == nil {
		return
	}
	m.EstablishFailuresTotal.WithLabelValues(code).Inc()
}
