/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package bucket

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/acronis/go-throttledbucket/log"
)

// maxWindowMillis is the longest window in milliseconds representable by time.Duration.
const maxWindowMillis = math.MaxInt64 / int64(time.Millisecond)

// Stats is a point-in-time snapshot of the bucket state.
type Stats struct {
	MaxRate     int
	Window      time.Duration
	Remaining   int
	WindowStart time.Time
	Held        int
}

// WindowElapsed reports whether the window captured in the snapshot is over at the given moment.
func (s Stats) WindowElapsed(now time.Time) bool {
	return !s.WindowStart.Add(s.Window).After(now)
}

// Opts represents options for the Bucket.
type Opts struct {
	// Logger is used for logging admission decisions. Disabled logger is used if nil.
	Logger log.FieldLogger

	// MetricsCollector collects admission statistics. Metrics are disabled if nil.
	MetricsCollector MetricsCollector

	// NowFunc returns the current time. time.Now is used if nil.
	NowFunc func() time.Time
}

// Bucket admits up to maxRate items per window and keeps the rest in the holding set.
// All methods are safe for concurrent use.
type Bucket[V any] struct {
	maxRate int
	window  time.Duration

	mu          sync.Mutex
	remaining   int
	windowStart time.Time
	holding     *holdingSet[V]

	logger           log.FieldLogger
	metricsCollector MetricsCollector
	now              func() time.Time
}

// New creates a new Bucket that admits maxRate items per window.
// ErrInvalidConfiguration is returned if any of the parameters is not positive.
func New[V any](maxRate int, window time.Duration) (*Bucket[V], error) {
	return NewWithOpts[V](maxRate, window, Opts{})
}

// NewWithMillis is like New but accepts the window length in milliseconds.
func NewWithMillis[V any](maxRate, minWindowMillis int) (*Bucket[V], error) {
	if int64(minWindowMillis) > maxWindowMillis {
		return nil, fmt.Errorf("%w: window should be <= %d ms, got %d ms",
			ErrInvalidConfiguration, maxWindowMillis, minWindowMillis)
	}
	return NewWithOpts[V](maxRate, time.Duration(minWindowMillis)*time.Millisecond, Opts{})
}

// NewWithOpts creates a new Bucket with an ability to specify different optional parameters.
func NewWithOpts[V any](maxRate int, window time.Duration, opts Opts) (*Bucket[V], error) {
	if err := validateParams(maxRate, window); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetricsCollector
	}
	if opts.NowFunc == nil {
		opts.NowFunc = time.Now
	}

	b := &Bucket[V]{
		maxRate:          maxRate,
		window:           window,
		remaining:        maxRate,
		windowStart:      opts.NowFunc(),
		holding:          newHoldingSet[V](),
		logger:           opts.Logger,
		metricsCollector: opts.MetricsCollector,
		now:              opts.NowFunc,
	}
	b.logger.Info("throttled bucket initialized", log.Int("max_rate", maxRate), log.Duration("window", window))
	return b, nil
}

// NewFromConfig creates a new Bucket using parameters from the Config.
func NewFromConfig[V any](cfg *Config, opts Opts) (*Bucket[V], error) {
	return NewWithOpts[V](cfg.MaxRate, time.Duration(cfg.Window), opts)
}

// Reset moves the window start to the current moment.
// Neither the remaining allowance nor the holding set is changed.
func (b *Bucket[V]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windowStart = b.now()
}

// TryAdmit decides whether the item may proceed now.
// If it returns false, the item is put into the holding set with a release time
// at the end of the current window.
//
// The window is rolled only when it has elapsed and its allowance was fully consumed.
// The call that rolls the window is itself deferred (with an already passed release time),
// the fresh allowance becomes available starting from the next call.
// A window that elapsed with allowance left is not rolled; use Reset to realign it.
func (b *Bucket[V]) TryAdmit(item V) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	timeLeft := b.windowStart.Add(b.window).Sub(now)

	if timeLeft <= 0 && b.remaining <= 0 {
		b.windowStart = now
		b.remaining = b.maxRate
		b.metricsCollector.IncWindowRolls()
		b.logger.Debug("window rolled", log.Time("window_start", now))
	}

	if timeLeft > 0 && b.remaining > 0 {
		b.remaining--
		b.metricsCollector.IncAdmitted()
		b.logger.Debug("item admitted",
			log.Duration("time_left", timeLeft), log.Int("remaining", b.remaining))
		return true
	}

	deferred := DeferredItem[V]{
		ID:          xid.New().String(),
		Payload:     item,
		DeferredAt:  now,
		ReleaseTime: now.Add(timeLeft),
	}
	b.holding.push(deferred)
	b.metricsCollector.IncDeferred()
	b.metricsCollector.AddHeld(1)
	b.logger.Debug("item deferred",
		log.String("item_id", deferred.ID), log.Duration("time_left", timeLeft), log.Int("remaining", b.remaining))
	return false
}

// Retrieve returns payloads of all held items regardless of their readiness.
// Items are not removed, they are ordered by release time and then by insertion.
func (b *Bucket[V]) Retrieve() []V {
	return payloads(b.Deferred())
}

// Deferred returns a snapshot of all held items in the same order as Retrieve.
func (b *Bucket[V]) Deferred() []DeferredItem[V] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.holding.snapshot()
}

// DrainReady removes from the holding set and returns payloads of items whose release time has come.
func (b *Bucket[V]) DrainReady() []V {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.holding.popReady(b.now())
	b.metricsCollector.AddHeld(-len(items))
	return payloads(items)
}

// TakeReady removes from the holding set and returns the earliest released item if its release time has come.
func (b *Bucket[V]) TakeReady() (item V, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	deferred, ok := b.holding.popOneReady(b.now())
	if !ok {
		return item, false
	}
	b.metricsCollector.AddHeld(-1)
	return deferred.Payload, true
}

// Drain removes all items from the holding set and returns their payloads in release order.
func (b *Bucket[V]) Drain() []V {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.holding.popAll()
	b.metricsCollector.AddHeld(-len(items))
	return payloads(items)
}

// NextRelease returns the release time of the earliest held item.
// False is returned if the holding set is empty.
func (b *Bucket[V]) NextRelease() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	item, ok := b.holding.peek()
	return item.ReleaseTime, ok
}

// Len returns the number of held items.
func (b *Bucket[V]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.holding.len()
}

// Stats returns a consistent snapshot of the bucket state.
func (b *Bucket[V]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		MaxRate:     b.maxRate,
		Window:      b.window,
		Remaining:   b.remaining,
		WindowStart: b.windowStart,
		Held:        b.holding.len(),
	}
}

// Now returns the current time according to the bucket's clock.
func (b *Bucket[V]) Now() time.Time {
	return b.now()
}

func payloads[V any](items []DeferredItem[V]) []V {
	res := make([]V, 0, len(items))
	for i := range items {
		res = append(res, items[i].Payload)
	}
	return res
}
