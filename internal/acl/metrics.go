package acl

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Decision paths as reported in metrics and logs.
const (
	PathDirect  = "direct"
	PathGeneric = "generic"
)

// Metrics exposes Prometheus collectors for authorization decisions.
type Metrics struct {
	decisions  *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	mismatches *prometheus.CounterVec
}

// NewMetrics registers the decision collectors against registerer, or the
// default registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lingvodoc_acl_decisions_total",
			Help: "Authorization decisions by path and result.",
		}, []string{"path", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lingvodoc_acl_decision_duration_seconds",
			Help:    "Time spent reaching an authorization decision.",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"path"}),
		mismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lingvodoc_acl_path_mismatch_total",
			Help: "Cross-checks where the direct and generic paths disagreed.",
		}, []string{"subject"}),
	}
	registerer.MustRegister(m.decisions, m.duration, m.mismatches)
	return m
}

func (m *Metrics) observe(path string, start time.Time, allowed bool, err error) {
	if m == nil {
		return
	}
	result := "deny"
	switch {
	case err != nil:
		result = "error"
	case allowed:
		result = "allow"
	}
	m.decisions.WithLabelValues(path, result).Inc()
	m.duration.WithLabelValues(path).Observe(time.Since(start).Seconds())
}

// Mismatch records a cross-check where the two decision paths disagreed.
func (m *Metrics) Mismatch(subject string) {
	if m == nil {
		return
	}
	m.mismatches.WithLabelValues(subject).Inc()
}
