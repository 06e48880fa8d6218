package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/condo-ledger/billing"
)

// Metrics records engine outcomes as Prometheus series.
type Metrics struct {
	registry *prometheus.Registry

	operations      *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	quotasGenerated prometheus.Counter
	refundedApps    prometheus.Counter
}

// NewMetrics registers the billing collectors, plus the Go runtime and
// process collectors, on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_operations_total",
				Help: "Billing operations by outcome code.",
			},
			[]string{"op", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_operation_duration_seconds",
				Help:    "Billing operation latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		quotasGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_quotas_generated_total",
			Help: "Quotas created by charge generation.",
		}),
		refundedApps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billing_refunded_applications_total",
			Help: "Payment applications reversed by refunds.",
		}),
	}
	m.registry.MustRegister(
		m.operations, m.duration, m.quotasGenerated, m.refundedApps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

var _ billing.Recorder = (*Metrics)(nil)

func (m *Metrics) Observe(op string, code billing.Code, elapsed time.Duration) {
	outcome := string(code)
	if outcome == "" {
		outcome = "OK"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) QuotasGenerated(n int) {
	m.quotasGenerated.Add(float64(n))
}

func (m *Metrics) ApplicationsReversed(n int) {
	m.refundedApps.Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
