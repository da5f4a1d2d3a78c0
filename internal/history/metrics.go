package history

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts history operations. The zero value is not usable; build one
// with NewMetrics.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	evicted    prometheus.Counter
	logSize    prometheus.Gauge
}

// NewMetrics creates the history collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retouch_history_operations_total",
			Help: "History operations by outcome",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "retouch_history_operation_duration_seconds",
			Help:    "Duration of history operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"op"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retouch_history_evicted_total",
			Help: "Log entries evicted by the retention cap",
		}),
		logSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "retouch_history_log_size",
			Help: "Entries in the attached document's log",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration, m.evicted, m.logSize)
	}
	return m
}

func (m *Metrics) timer(op string) *prometheus.Timer {
	return prometheus.NewTimer(m.duration.WithLabelValues(op))
}

// observe counts op with an outcome derived from err.
func (m *Metrics) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if c := CodeOf(err); c != "" {
			outcome = strings.ToLower(string(c))
		}
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) reentrant(op string) {
	m.operations.WithLabelValues(op, "reentrant").Inc()
}
