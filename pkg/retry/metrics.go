package retry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records retry executor activity. All methods are nil-safe: calls
// on a nil *Metrics are no-ops.
type Metrics struct {
	// OperationsTotal counts finished operations by op and result code.
	OperationsTotal *prometheus.CounterVec

	// PendingRetriesTotal counts calls repeated after STATUS_PENDING, by op.
	PendingRetriesTotal *prometheus.CounterVec

	// TimeoutsTotal counts operations abandoned at the deadline, by op.
	TimeoutsTotal *prometheus.CounterVec

	// Duration observes the wall-clock time of an operation including retries.
	Duration *prometheus.HistogramVec
}

// NewMetrics creates retry metrics and registers them with reg. A nil reg
// leaves them unregistered. Collectors already registered by a previous
// executor are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smbkit",
			Subsystem: "retry",
			Name:      "operations_total",
			Help:      "Operations run through the retry executor",
		}, []string{"op", "result"}),
		PendingRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smbkit",
			Subsystem: "retry",
			Name:      "pending_retries_total",
			Help:      "Calls repeated because the server reported STATUS_PENDING",
		}, []string{"op"}),
		TimeoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smbkit",
			Subsystem: "retry",
			Name:      "timeouts_total",
			Help:      "Operations that were still pending at the deadline",
		}, []string{"op"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smbkit",
			Subsystem: "retry",
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock duration of retried operations",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
		}, []string{"op"}),
	}

	if reg != nil {
		m.OperationsTotal = register(reg, m.OperationsTotal)
		m.PendingRetriesTotal = register(reg, m.PendingRetriesTotal)
		m.TimeoutsTotal = register(reg, m.TimeoutsTotal)
		m.Duration = register(reg, m.Duration)
	}
	return m
}

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

func (m *Metrics) recordRetry(op string) {
	if m == nil {
		return
	}
	m.PendingRetriesTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) recordDone(op, result string, seconds float64, timedOut bool) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(op, result).Inc()
	m.Duration.WithLabelValues(op).Observe(seconds)
	if timedOut {
		m.TimeoutsTotal.WithLabelValues(op).Inc()
	}
}
