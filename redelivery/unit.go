/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package redelivery

import (
	"time"

	"github.com/acronis/go-throttledbucket/log"
	"github.com/acronis/go-throttledbucket/service"
)

// UnitOpts represents options for NewUnit.
type UnitOpts struct {
	// MetricsRegisterer is registered together with the unit (e.g. *PrometheusMetrics).
	MetricsRegisterer service.MetricsRegisterer

	// GracefulStopTimeout limits waiting for the current pass on graceful stop.
	GracefulStopTimeout time.Duration
}

// NewUnit wraps the Redeliverer into a service unit that runs passes periodically.
// The next pass starts when the earliest held item is released but no later than interval.
func NewUnit[V any](r *Redeliverer[V], interval time.Duration, logger log.FieldLogger, opts UnitOpts) *service.WorkerUnit {
	nextDelay := func(runErr error) time.Duration {
		if d := r.NextDelay(runErr); d > 0 && d < interval {
			return d
		}
		return interval
	}
	worker := service.NewPeriodicWorkerWithOpts(r, interval, logger, service.PeriodicWorkerOpts{NextDelay: nextDelay})
	return service.NewWorkerUnitWithOpts(worker, service.WorkerUnitOpts{
		MetricsRegisterer:   opts.MetricsRegisterer,
		GracefulStopTimeout: opts.GracefulStopTimeout,
	})
}
