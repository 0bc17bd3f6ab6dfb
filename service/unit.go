/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package service runs long-living parts of a throttled bucket deployment
// (redelivery workers, HTTP endpoints) as units with a common start/stop lifecycle.
package service

// Unit is a component of the service with its own lifecycle.
type Unit interface {
	// Start runs the unit. It may return immediately or block for the unit's lifetime.
	// A fatal error is reported by sending it into the channel before Start returns.
	Start(fatalErr chan<- error)

	// Stop halts the unit. It may be called even if Start failed or was never called.
	Stop(gracefully bool) error
}

// MetricsRegisterer is implemented by units that own Prometheus metrics.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
