/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Command bucketdemo exposes a throttled bucket over HTTP.
// Submitted items are admitted within the configured rate, the rest are held
// and redelivered to a logging handler once their window is over.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/acronis/go-throttledbucket/bucket"
	"github.com/acronis/go-throttledbucket/config"
	"github.com/acronis/go-throttledbucket/log"
	"github.com/acronis/go-throttledbucket/redelivery"
	"github.com/acronis/go-throttledbucket/service"
)

const envVarsPrefix = "bucketdemo"

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "config.yml", "path to the YAML configuration file")
	flag.Parse()

	cfg := newAppConfig()
	if err := config.NewDefaultLoader(envVarsPrefix).LoadFromFile(*cfgPath, config.DataTypeYAML, cfg.configs()...); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, closeLogger := log.NewLogger(cfg.Log)
	defer closeLogger()

	unit, err := newUnit(cfg, logger)
	if err != nil {
		return err
	}
	return service.New(logger, unit).Start()
}

func newUnit(cfg *appConfig, logger log.FieldLogger) (service.Unit, error) {
	bucketMetrics := bucket.NewPrometheusMetrics()
	b, err := bucket.NewFromConfig[string](cfg.Bucket, bucket.Opts{
		Logger:           logger.With(log.String("component", "bucket")),
		MetricsCollector: bucketMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	redeliveryLogger := logger.With(log.String("component", "redelivery"))
	redeliveryMetrics := redelivery.NewPrometheusMetrics()
	redeliverer := redelivery.NewFromConfig[string](b, logItem(redeliveryLogger), redeliveryLogger, cfg.Redelivery,
		redelivery.Opts{MetricsCollector: redeliveryMetrics})

	return service.NewCompositeUnit(
		redelivery.NewUnit[string](redeliverer, time.Duration(cfg.Redelivery.Interval), redeliveryLogger,
			redelivery.UnitOpts{MetricsRegisterer: redeliveryMetrics, GracefulStopTimeout: time.Duration(cfg.Server.ShutdownTimeout)}),
		newHTTPUnit(cfg.Server, newRouter(b, redeliverer, logger), logger, bucketMetrics),
	), nil
}

func logItem(logger log.FieldLogger) redelivery.Handler[string] {
	return func(ctx context.Context, item string) error {
		logger.Info("deferred item processed", log.String("item", item))
		return nil
	}
}
