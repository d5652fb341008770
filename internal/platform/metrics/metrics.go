package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	LoansCreated     prometheus.Counter
	PaymentsRecorded *prometheus.CounterVec
	CascadeLength    prometheus.Histogram
	ScheduleDuration prometheus.Histogram
	DashboardCache   *prometheus.CounterVec
	RequestLatency   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		LoansCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loanbook_loans_created_total",
			Help: "Total number of loans created",
		}),
		PaymentsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loanbook_payments_recorded_total",
			Help: "Total payments recorded by type",
		}, []string{"type"}),
		CascadeLength: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "loanbook_balance_cascade_payments",
			Help:    "Number of payments rewritten per balance cascade",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		ScheduleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "loanbook_schedule_build_duration_seconds",
			Help:    "Duration of amortization schedule generation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		DashboardCache: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loanbook_dashboard_cache_total",
			Help: "Dashboard summary cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "bypass"
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loanbook_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "status"}),
	}
}

// IncrementLoansCreated records a successful loan creation.
func (m *Metrics) IncrementLoansCreated() {
	if m != nil {
		m.LoansCreated.Inc()
	}
}

// IncrementPaymentsRecorded records a payment by its type.
func (m *Metrics) IncrementPaymentsRecorded(paymentType string) {
	if m != nil {
		m.PaymentsRecorded.WithLabelValues(paymentType).Inc()
	}
}

// ObserveCascadeLength records how many payments a balance cascade rewrote.
func (m *Metrics) ObserveCascadeLength(n int) {
	if m != nil {
		m.CascadeLength.Observe(float64(n))
	}
}

// ObserveScheduleDuration records how long schedule generation took.
func (m *Metrics) ObserveScheduleDuration(d time.Duration) {
	if m != nil {
		m.ScheduleDuration.Observe(d.Seconds())
	}
}

// RecordDashboardCache records a cache lookup outcome.
func (m *Metrics) RecordDashboardCache(result string) {
	if m != nil {
		m.DashboardCache.WithLabelValues(result).Inc()
	}
}

// ObserveRequestLatency records HTTP latency for a route/status pair.
func (m *Metrics) ObserveRequestLatency(route, status string, d time.Duration) {
	if m != nil {
		m.RequestLatency.WithLabelValues(route, status).Observe(d.Seconds())
	}
}
