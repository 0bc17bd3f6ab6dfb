/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package redelivery resubmits items held by a throttled bucket once their release time comes.
// Items admitted on resubmission are passed to a handler, the rest are deferred by the bucket again.
package redelivery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/acronis/go-throttledbucket/bucket"
	"github.com/acronis/go-throttledbucket/log"
)

// Handler processes an item admitted on redelivery.
type Handler[V any] func(ctx context.Context, item V) error

// Stats contains redelivery counters since the Redeliverer was created.
type Stats struct {
	// Redelivered is the number of items taken from the holding set and resubmitted.
	Redelivered int64 `json:"redelivered"`
	// Handled is the number of admitted items processed by the handler successfully.
	Handled int64 `json:"handled"`
	// Failed is the number of admitted items the handler gave up on.
	Failed int64 `json:"failed"`
	// Redeferred is the number of resubmitted items that were not admitted.
	Redeferred int64 `json:"redeferred"`
}

// Opts represents options for the Redeliverer.
type Opts struct {
	// RateLimit limits resubmissions per second. Zero means no limit.
	RateLimit rate.Limit

	// RateBurst is the maximum number of resubmissions performed at once when RateLimit is set.
	// 1 is used if not positive.
	RateBurst int

	// RetryPolicy is used for repeating failed handler calls. Handler is called once if nil.
	RetryPolicy RetryPolicy

	// IsRetryable tells whether a handler error should be retried. Any error is retried if nil.
	IsRetryable func(error) bool

	// DisableIdleWindowRealign turns off resetting of the bucket's window before each pass.
	// By default, a window that has elapsed with allowance left is reset, otherwise ready items
	// are deferred again until something else rolls the window.
	DisableIdleWindowRealign bool

	// MetricsCollector collects redelivery statistics. Metrics are disabled if nil.
	MetricsCollector MetricsCollector
}

// Redeliverer resubmits ready items of the bucket. It implements service.Worker,
// every Run call makes one pass over the items that are ready at that moment.
type Redeliverer[V any] struct {
	bucket            *bucket.Bucket[V]
	handler           Handler[V]
	logger            log.FieldLogger
	limiter           *rate.Limiter
	retryPolicy       RetryPolicy
	isRetryable       func(error) bool
	realignIdleWindow bool
	metricsCollector  MetricsCollector

	// stalled is set when the last pass deferred all resubmitted items again.
	stalled atomic.Bool

	redelivered atomic.Int64
	handled     atomic.Int64
	failed      atomic.Int64
	redeferred  atomic.Int64
}

// New creates a new Redeliverer for the bucket.
func New[V any](b *bucket.Bucket[V], handler Handler[V], logger log.FieldLogger, opts Opts) *Redeliverer[V] {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetricsCollector
	}
	r := &Redeliverer[V]{
		bucket:            b,
		handler:           handler,
		logger:            logger,
		retryPolicy:       opts.RetryPolicy,
		isRetryable:       opts.IsRetryable,
		realignIdleWindow: !opts.DisableIdleWindowRealign,
		metricsCollector:  opts.MetricsCollector,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(opts.RateLimit, burst)
	}
	return r
}

// NewFromConfig creates a new Redeliverer using parameters from the Config.
// Rate, retry and window realignment settings of opts are overridden by the Config.
func NewFromConfig[V any](
	b *bucket.Bucket[V], handler Handler[V], logger log.FieldLogger, cfg *Config, opts Opts,
) *Redeliverer[V] {
	opts.RateLimit = rate.Limit(cfg.RateLimit)
	opts.RateBurst = cfg.RateBurst
	opts.DisableIdleWindowRealign = !cfg.RealignIdleWindow
	opts.RetryPolicy = ExponentialRetryPolicy{
		InitialInterval: time.Duration(cfg.Retry.InitialInterval),
		MaxAttempts:     cfg.Retry.MaxAttempts,
	}
	return New[V](b, handler, logger, opts)
}

// Run makes one redelivery pass. Every item held at the start of the pass is resubmitted at most once.
// The pass is interrupted without losing items when the context is done.
func (r *Redeliverer[V]) Run(ctx context.Context) error {
	if r.realignIdleWindow {
		r.realignWindow()
	}

	var admitted, redeferred int
	defer func() {
		r.stalled.Store(admitted == 0 && redeferred > 0)
	}()

	budget := r.bucket.Len()
	for i := 0; i < budget; i++ {
		if err := r.waitTurn(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		item, ok := r.bucket.TakeReady()
		if !ok {
			return nil
		}
		r.redelivered.Inc()

		if !r.bucket.TryAdmit(item) {
			redeferred++
			r.redeferred.Inc()
			r.metricsCollector.IncRedeliveries(ResultRedeferred)
			continue
		}
		admitted++
		r.handle(ctx, item)
	}
	return nil
}

// NextDelay returns the time left until the earliest held item is released.
// Zero is returned if nothing is held or if the last pass could not admit any ready item,
// so the caller falls back to its regular interval. It may be used as service.PeriodicWorkerOpts.NextDelay.
func (r *Redeliverer[V]) NextDelay(_ error) time.Duration {
	release, ok := r.bucket.NextRelease()
	if !ok {
		return 0
	}
	if d := release.Sub(r.bucket.Now()); d > 0 {
		return d
	}
	if r.stalled.Load() {
		return 0
	}
	// Ready items are left after the pass, so the next one should start as soon as possible.
	return time.Millisecond
}

// Stats returns redelivery counters.
func (r *Redeliverer[V]) Stats() Stats {
	return Stats{
		Redelivered: r.redelivered.Load(),
		Handled:     r.handled.Load(),
		Failed:      r.failed.Load(),
		Redeferred:  r.redeferred.Load(),
	}
}

func (r *Redeliverer[V]) waitTurn(ctx context.Context) error {
	if r.limiter == nil {
		return ctx.Err()
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for redelivery rate limiter: %w", err)
	}
	return nil
}

func (r *Redeliverer[V]) realignWindow() {
	stats := r.bucket.Stats()
	if stats.Remaining > 0 && stats.WindowElapsed(r.bucket.Now()) {
		r.bucket.Reset()
		r.logger.Debug("idle window realigned",
			log.Int("remaining", stats.Remaining), log.Int("held", stats.Held))
	}
}

func (r *Redeliverer[V]) handle(ctx context.Context, item V) {
	notify := func(err error, delay time.Duration) {
		r.logger.Warn("redelivered item handling failed, retrying", log.Error(err), log.Duration("delay", delay))
	}
	startTime := time.Now()
	err := doWithRetry(ctx, r.retryPolicy, r.isRetryable, notify, func(ctx context.Context) error {
		return r.handler(ctx, item)
	})
	r.metricsCollector.ObserveHandleDuration(time.Since(startTime))
	if err != nil {
		r.failed.Inc()
		r.metricsCollector.IncRedeliveries(ResultFailed)
		r.logger.Error("redelivered item handling failed", log.Error(err))
		return
	}
	r.handled.Inc()
	r.metricsCollector.IncRedeliveries(ResultHandled)
}
