package preflight

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of the preflight check that a [Simulator] performs for each
// request, as reported by the "outcome" label of the requests counter.
const (
	OutcomeSkipped = "skipped" // unusable URL or non-HTTP scheme
	OutcomeSimple  = "simple"  // no preflight required
	OutcomeCached  = "cached"  // preflight required but suppressed by a cache hit
	OutcomeSent    = "sent"    // preflight sent and response received
	OutcomeFailed  = "failed"  // preflight sent but no response received
)

// Metrics holds the Prometheus collectors that Simulators update.
// A single Metrics value is typically shared by all the Simulators of a
// load test. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  prometheus.Histogram
}

// NewMetrics creates the collectors of a Metrics and registers them with reg.
// If reg is nil, the collectors are not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "preflight",
				Name:      "requests_total",
				Help:      "Requests inspected for CORS preflight, by outcome.",
			},
			[]string{"outcome"},
		),
		latency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "preflight",
				Name:      "duration_seconds",
				Help:      "Round-trip time of the synthetic CORS-preflight requests.",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeResult(r *Result) {
	if m == nil {
		return
	}
	if r.Err != nil {
		m.requests.WithLabelValues(OutcomeFailed).Inc()
		return
	}
	m.requests.WithLabelValues(OutcomeSent).Inc()
	m.latency.Observe(r.Elapsed.Seconds())
}
