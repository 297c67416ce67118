// Package metrics records poll-cycle and tracked-set metrics for the monitor.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll results reported to ObservePoll.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultDiscarded = "discarded"
)

// Recorder is the metrics surface the monitor reports to.
type Recorder interface {
	// ObservePoll records one poll cycle and how long its fetches took.
	ObservePoll(result string, duration time.Duration)
	// IncAPIError counts a classified API failure by its short code.
	IncAPIError(code string)
	// IncTransition counts a build changing state.
	IncTransition(from, to string)
	// SetTracked sets the current size of the tracked set.
	SetTracked(active, completed int)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) ObservePoll(string, time.Duration) {}
func (NopRecorder) IncAPIError(string)                {}
func (NopRecorder) IncTransition(string, string)      {}
func (NopRecorder) SetTracked(int, int)               {}

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	pollsTotal   *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	apiErrors    *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	tracked      *prometheus.GaugeVec
}

// NewPrometheusRecorder registers the buildwatch metrics on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		pollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildwatch_polls_total",
				Help: "Total number of poll cycles by result",
			},
			[]string{"result"},
		),
		pollDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buildwatch_poll_duration_seconds",
				Help:    "Duration of poll cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		apiErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildwatch_api_errors_total",
				Help: "Total number of classified Buildkite API errors by code",
			},
			[]string{"code"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildwatch_transitions_total",
				Help: "Total number of observed build state transitions",
			},
			[]string{"from", "to"},
		),
		tracked: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "buildwatch_tracked_builds",
				Help: "Number of builds currently tracked, by group",
			},
			[]string{"group"},
		),
	}
}

// ObservePoll records one poll cycle.
func (p *PrometheusRecorder) ObservePoll(result string, duration time.Duration) {
	p.pollsTotal.WithLabelValues(result).Inc()
	p.pollDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// IncAPIError counts a classified API failure.
func (p *PrometheusRecorder) IncAPIError(code string) {
	p.apiErrors.WithLabelValues(code).Inc()
}

// IncTransition counts a state transition.
func (p *PrometheusRecorder) IncTransition(from, to string) {
	p.transitions.WithLabelValues(from, to).Inc()
}

// SetTracked sets the active and completed gauges.
func (p *PrometheusRecorder) SetTracked(active, completed int) {
	p.tracked.WithLabelValues("active").Set(float64(active))
	p.tracked.WithLabelValues("completed").Set(float64(completed))
}

// Handler serves the metrics gathered by reg.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
