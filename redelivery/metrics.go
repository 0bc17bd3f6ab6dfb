/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package redelivery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Redelivery results.
const (
	ResultHandled    = "handled"
	ResultFailed     = "failed"
	ResultRedeferred = "redeferred"
)

// MetricsCollector represents a collector of redelivery metrics.
type MetricsCollector interface {
	// IncRedeliveries increments the number of resubmitted items with the given result.
	IncRedeliveries(result string)

	// ObserveHandleDuration observes the duration of handling an admitted item, retries included.
	ObserveHandleDuration(d time.Duration)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// DurationBuckets is a list of buckets for the handle duration histogram.
	// prometheus.DefBuckets is used if empty.
	DurationBuckets []float64

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels
}

// PrometheusMetrics represents Prometheus metrics for the Redeliverer.
type PrometheusMetrics struct {
	RedeliveriesTotal *prometheus.CounterVec
	HandleDuration    prometheus.Histogram
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	return &PrometheusMetrics{
		RedeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   opts.Namespace,
				Name:        "throttled_bucket_redeliveries_total",
				Help:        "Number of held items resubmitted to the bucket.",
				ConstLabels: opts.ConstLabels,
			},
			[]string{"result"},
		),
		HandleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   opts.Namespace,
				Name:        "throttled_bucket_redelivery_handle_duration_seconds",
				Help:        "Duration of handling redelivered items.",
				Buckets:     buckets,
				ConstLabels: opts.ConstLabels,
			},
		),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.RedeliveriesTotal, pm.HandleDuration)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.RedeliveriesTotal)
	prometheus.Unregister(pm.HandleDuration)
}

// MustRegisterMetrics implements service.MetricsRegisterer.
func (pm *PrometheusMetrics) MustRegisterMetrics() {
	pm.MustRegister()
}

// UnregisterMetrics implements service.MetricsRegisterer.
func (pm *PrometheusMetrics) UnregisterMetrics() {
	pm.Unregister()
}

// IncRedeliveries increments the number of resubmitted items with the given result.
func (pm *PrometheusMetrics) IncRedeliveries(result string) {
	pm.RedeliveriesTotal.WithLabelValues(result).Inc()
}

// ObserveHandleDuration observes the duration of handling an admitted item.
func (pm *PrometheusMetrics) ObserveHandleDuration(d time.Duration) {
	pm.HandleDuration.Observe(d.Seconds())
}

type disabledMetrics struct{}

func (disabledMetrics) IncRedeliveries(string)              {}
func (disabledMetrics) ObserveHandleDuration(time.Duration) {}

var disabledMetricsCollector = disabledMetrics{}
