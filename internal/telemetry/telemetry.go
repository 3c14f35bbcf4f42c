// Package telemetry exposes engine-side Prometheus metrics for a running
// load test: what surge itself issued and observed, as opposed to the
// end-of-run summary.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torosent/surge/internal/metrics"
)

const namespace = "surge"

// Recorder holds the metric vectors. A nil *Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	bytes     prometheus.Counter
	inFlight  prometheus.Gauge
	scheduled *prometheus.CounterVec
	runs      *prometheus.CounterVec
}

// New registers the surge metrics on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Requests completed, by HTTP method and outcome (status class or error class).",
			},
			[]string{"method", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Observed request latency in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
			},
			[]string{"method"},
		),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_bytes_total",
			Help:      "Response body bytes received.",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Requests currently waiting on the target.",
		}),
		scheduled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduled_requests_total",
				Help:      "Requests issued by the scheduler, by test type and phase.",
			},
			[]string{"test_type", "phase"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Finished load test runs, by test type and result.",
			},
			[]string{"test_type", "result"},
		),
	}
}

// RequestStarted marks a request in flight. The returned func must be
// called exactly once when it completes.
func (r *Recorder) RequestStarted() func() {
	if r == nil {
		return func() {}
	}
	r.inFlight.Inc()
	return r.inFlight.Dec
}

// ObserveResult records one completed request.
func (r *Recorder) ObserveResult(method string, statusCode int, errMsg string, elapsed time.Duration, size int) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(method, Outcome(statusCode, errMsg)).Inc()
	r.duration.WithLabelValues(method).Observe(elapsed.Seconds())
	if size > 0 {
		r.bytes.Add(float64(size))
	}
}

// RequestScheduled counts one spawn in the given phase.
func (r *Recorder) RequestScheduled(testType, phase string) {
	if r == nil {
		return
	}
	r.scheduled.WithLabelValues(testType, phase).Inc()
}

// RunFinished counts a finished run; result is "completed" or "failed".
func (r *Recorder) RunFinished(testType, result string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(testType, result).Inc()
}

// Registry returns the registry holding the surge metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Outcome labels a request by status class ("2xx", "5xx") when a response
// arrived, otherwise by error class.
func Outcome(statusCode int, errMsg string) string {
	if statusCode > 0 {
		return strconv.Itoa(statusCode/100) + "xx"
	}
	switch metrics.ErrorClass(errMsg) {
	case metrics.ErrTimeout:
		return "timeout"
	case metrics.ErrTransport:
		return "transport_error"
	default:
		return "unexpected_error"
	}
}
