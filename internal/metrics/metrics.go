// Package metrics exposes Prometheus metrics for attendance marking,
// enrollment and the HTTP API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mark outcomes used as the "outcome" label.
const (
	OutcomeRecorded     = "recorded"
	OutcomeDeduplicated = "deduplicated"
	OutcomeUnmatched    = "unmatched"
	OutcomeNoFace       = "no_face"
	OutcomeError        = "error"
)

// Recorder holds all collectors. A nil *Recorder is valid and records nothing,
// so callers that do not care about metrics can pass nil.
type Recorder struct {
	registry *prometheus.Registry

	marks           *prometheus.CounterVec
	lateMarks       prometheus.Counter
	matchDuration   prometheus.Histogram
	samplesScanned  prometheus.Histogram
	enrollments     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpRequestTime *prometheus.HistogramVec
}

// Option configures a Recorder.
type Option func(*options)

type options struct {
	namespace string
	buckets   []float64
	goMetrics bool
}

// WithNamespace sets the metric name prefix. Defaults to "attendance".
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithHistogramBuckets overrides the latency buckets.
func WithHistogramBuckets(buckets []float64) Option {
	return func(o *options) {
		o.buckets = buckets
	}
}

// WithGoCollectors also exports Go runtime and process metrics.
func WithGoCollectors() Option {
	return func(o *options) {
		o.goMetrics = true
	}
}

// New creates a Recorder backed by its own registry.
func New(opts ...Option) *Recorder {
	o := options{
		namespace: "attendance",
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&o)
	}

	reg := prometheus.NewRegistry()
	if o.goMetrics {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		marks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "marks_total",
			Help:      "Attendance mark attempts by outcome.",
		}, []string{"outcome"}),
		lateMarks: f.NewCounter(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "late_marks_total",
			Help:      "Recorded attendance marks classified as late.",
		}),
		matchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "match_duration_seconds",
			Help:      "Time spent resolving a probe image, including encoding.",
			Buckets:   o.buckets,
		}),
		samplesScanned: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "match_samples_scanned",
			Help:      "Gallery samples compared per match.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		enrollments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "enrollments_total",
			Help:      "Enrolled samples by whether a face was detected.",
		}, []string{"face"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "method", "status"}),
		httpRequestTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   o.buckets,
		}, []string{"route", "method"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveMark records the outcome of one mark attempt.
func (r *Recorder) ObserveMark(outcome string, late bool) {
	if r == nil {
		return
	}
	r.marks.WithLabelValues(outcome).Inc()
	if outcome == OutcomeRecorded && late {
		r.lateMarks.Inc()
	}
}

// ObserveMatch records how long a match took and how many samples it compared.
func (r *Recorder) ObserveMatch(d time.Duration, scanned int) {
	if r == nil {
		return
	}
	r.matchDuration.Observe(d.Seconds())
	r.samplesScanned.Observe(float64(scanned))
}

// ObserveEnrollment records one stored sample.
func (r *Recorder) ObserveEnrollment(hasFace bool) {
	if r == nil {
		return
	}
	label := "no"
	if hasFace {
		label = "yes"
	}
	r.enrollments.WithLabelValues(label).Inc()
}

// ObserveHTTP records one served request.
func (r *Recorder) ObserveHTTP(route, method, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpRequestTime.WithLabelValues(route, method).Observe(d.Seconds())
}
