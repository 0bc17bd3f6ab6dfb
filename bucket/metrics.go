/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package bucket

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of metrics for analyzing admission decisions.
type MetricsCollector interface {
	// IncAdmitted increments the total number of admitted items.
	IncAdmitted()

	// IncDeferred increments the total number of items put into the holding set.
	IncDeferred()

	// IncWindowRolls increments the total number of window rolls.
	IncWindowRolls()

	// AddHeld changes the number of items in the holding set by delta.
	// Buckets sharing a collector report deltas, so the gauge holds their total.
	AddHeld(delta int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// If this list is not empty, PrometheusMetrics.MustCurryWith must be called further with the same labels.
	CurriedLabelNames []string
}

// PrometheusMetrics represents Prometheus metrics for the bucket.
type PrometheusMetrics struct {
	AdmittedTotal    *prometheus.CounterVec
	DeferredTotal    *prometheus.CounterVec
	WindowRollsTotal *prometheus.CounterVec
	HeldItems        *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	admittedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "throttled_bucket_admitted_total",
			Help:        "Number of items admitted by the bucket.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	deferredTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "throttled_bucket_deferred_total",
			Help:        "Number of items put into the holding set.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	windowRollsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "throttled_bucket_window_rolls_total",
			Help:        "Number of times the admission window was rolled.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	heldItems := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "throttled_bucket_held_items",
			Help:        "Current number of items in the holding set.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	return &PrometheusMetrics{
		AdmittedTotal:    admittedTotal,
		DeferredTotal:    deferredTotal,
		WindowRollsTotal: windowRollsTotal,
		HeldItems:        heldItems,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		AdmittedTotal:    pm.AdmittedTotal.MustCurryWith(labels),
		DeferredTotal:    pm.DeferredTotal.MustCurryWith(labels),
		WindowRollsTotal: pm.WindowRollsTotal.MustCurryWith(labels),
		HeldItems:        pm.HeldItems.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.AdmittedTotal,
		pm.DeferredTotal,
		pm.WindowRollsTotal,
		pm.HeldItems,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.AdmittedTotal)
	prometheus.Unregister(pm.DeferredTotal)
	prometheus.Unregister(pm.WindowRollsTotal)
	prometheus.Unregister(pm.HeldItems)
}

// IncAdmitted increments the total number of admitted items.
func (pm *PrometheusMetrics) IncAdmitted() {
	pm.AdmittedTotal.With(nil).Inc()
}

// IncDeferred increments the total number of items put into the holding set.
func (pm *PrometheusMetrics) IncDeferred() {
	pm.DeferredTotal.With(nil).Inc()
}

// IncWindowRolls increments the total number of window rolls.
func (pm *PrometheusMetrics) IncWindowRolls() {
	pm.WindowRollsTotal.With(nil).Inc()
}

// AddHeld changes the number of items in the holding set by delta.
func (pm *PrometheusMetrics) AddHeld(delta int) {
	pm.HeldItems.With(nil).Add(float64(delta))
}

type disabledMetrics struct{}

func (disabledMetrics) IncAdmitted()    {}
func (disabledMetrics) IncDeferred()    {}
func (disabledMetrics) IncWindowRolls() {}
func (disabledMetrics) AddHeld(int)     {}

var disabledMetricsCollector = disabledMetrics{}
