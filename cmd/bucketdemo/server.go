/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/acronis/go-throttledbucket/log"
)

type metricsRegisterer interface {
	MustRegister()
	Unregister()
}

// httpUnit runs the HTTP server as a service unit.
type httpUnit struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          log.FieldLogger
	metrics         []metricsRegisterer
}

func newHTTPUnit(cfg *serverConfig, handler http.Handler, logger log.FieldLogger, metrics ...metricsRegisterer) *httpUnit {
	return &httpUnit{
		server: &http.Server{
			Addr:              cfg.Address,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: time.Duration(cfg.ShutdownTimeout),
		logger:          logger.With(log.String("address", cfg.Address)),
		metrics:         metrics,
	}
}

func (u *httpUnit) Start(fatalErr chan<- error) {
	u.logger.Info("starting HTTP server...")
	if err := u.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		u.logger.Error("HTTP server error", log.Error(err))
		fatalErr <- err
	}
}

func (u *httpUnit) Stop(gracefully bool) error {
	if !gracefully {
		return u.server.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), u.shutdownTimeout)
	defer cancel()
	u.logger.Info("shutting down HTTP server...", log.Duration("timeout", u.shutdownTimeout))
	return u.server.Shutdown(ctx)
}

func (u *httpUnit) MustRegisterMetrics() {
	for _, m := range u.metrics {
		m.MustRegister()
	}
}

func (u *httpUnit) UnregisterMetrics() {
	for _, m := range u.metrics {
		m.Unregister()
	}
}
