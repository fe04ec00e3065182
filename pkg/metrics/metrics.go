package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// NodesTotal reports how many nodes are in each (role, status) pair.
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ha_nodes_total",
			Help: "Total number of nodes by role and status",
		},
		[]string{"role", "status"},
	)

	// ServicesTotal reports how many tracked services are in each status.
	ServicesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ha_services_total",
			Help: "Total number of tracked services by status",
		},
		[]string{"status"},
	)

	// TickDuration times a full Refresher+Fixer+Switcher tick.
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ha_tick_duration_seconds",
			Help:    "Time taken for one agent tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ha_ticks_total",
			Help: "Total number of completed ticks by outcome",
		},
		[]string{"outcome"}, // ok, aborted
	)

	RefresherDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ha_refresher_duration_seconds",
			Help:    "Time taken by the Refresher component",
			Buckets: prometheus.DefBuckets,
		},
	)

	FixerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ha_fixer_duration_seconds",
			Help:    "Time taken by the Fixer component",
			Buckets: prometheus.DefBuckets,
		},
	)

	SwitcherDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ha_switcher_duration_seconds",
			Help:    "Time taken by the Switcher component",
			Buckets: prometheus.DefBuckets,
		},
	)

	ServiceRestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ha_service_restarts_total",
			Help: "Total number of systemctl restarts issued by the Fixer",
		},
		[]string{"service"},
	)

	IssuesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ha_issues_created_total",
			Help: "Total number of issues filed with the issue tracker by kind",
		},
		[]string{"issue_type"},
	)

	SwitchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ha_switches_total",
			Help: "Total number of completed failovers by mode",
		},
		[]string{"mode"}, // negotiated, forced
	)

	DNSRewritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ha_dns_rewrites_total",
			Help: "Total number of DNS provider record rewrites by outcome",
		},
		[]string{"outcome"}, // ok, no_match, error
	)

	WebhookRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ha_webhook_rotations_total",
			Help: "Total number of webhook rotation attempts by outcome",
		},
		[]string{"outcome"},
	)

	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ha_store_errors_total",
			Help: "Total number of coordination store errors by kind",
		},
		[]string{"kind"}, // transient, validation
	)
)

func init() {
	prometheus.MustRegister(
		NodesTotal,
		ServicesTotal,
		TickDuration,
		TicksTotal,
		RefresherDuration,
		FixerDuration,
		SwitcherDuration,
		ServiceRestartsTotal,
		IssuesCreatedTotal,
		SwitchesTotal,
		DNSRewritesTotal,
		WebhookRotationsTotal,
		StoreErrorsTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
