/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package redelivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"

	"github.com/acronis/go-throttledbucket/bucket"
	"github.com/acronis/go-throttledbucket/log/logtest"
	apptestutil "github.com/acronis/go-throttledbucket/testutil"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingHandler struct {
	mu    sync.Mutex
	items []string
}

func (h *recordingHandler) Handle(_ context.Context, item string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, item)
	return nil
}

func (h *recordingHandler) Items() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.items...)
}

type RedelivererTestSuite struct {
	suite.Suite
	clock       *manualClock
	logRecorder *logtest.Recorder
}

func TestRedeliverer(t *testing.T) {
	suite.Run(t, new(RedelivererTestSuite))
}

func (ts *RedelivererTestSuite) SetupTest() {
	ts.clock = newManualClock()
	ts.logRecorder = logtest.NewRecorder()
}

func (ts *RedelivererTestSuite) newBucket(maxRate int, window time.Duration) *bucket.Bucket[string] {
	b, err := bucket.NewWithOpts[string](maxRate, window, bucket.Opts{NowFunc: ts.clock.Now})
	ts.Require().NoError(err)
	return b
}

func (ts *RedelivererTestSuite) TestNothingReady() {
	b := ts.newBucket(1, 100*time.Millisecond)
	ts.True(b.TryAdmit("a"))
	ts.False(b.TryAdmit("b"))

	h := &recordingHandler{}
	r := New[string](b, h.Handle, ts.logRecorder, Opts{})
	ts.NoError(r.Run(context.Background()))
	ts.Empty(h.Items())
	ts.Equal(Stats{}, r.Stats())
	ts.Equal([]string{"b"}, b.Retrieve())
}

func (ts *RedelivererTestSuite) TestPass() {
	b := ts.newBucket(2, 100*time.Millisecond)
	ts.True(b.TryAdmit("a"))
	ts.True(b.TryAdmit("b"))
	ts.False(b.TryAdmit("c"))
	ts.False(b.TryAdmit("d"))
	ts.False(b.TryAdmit("e"))

	metrics := NewPrometheusMetrics()
	h := &recordingHandler{}
	r := New[string](b, h.Handle, ts.logRecorder, Opts{MetricsCollector: metrics})

	ts.clock.Advance(100 * time.Millisecond)
	ts.NoError(r.Run(context.Background()))

	// "c" rolls the window and is deferred again, "d" and "e" take the fresh allowance.
	ts.Equal([]string{"d", "e"}, h.Items())
	ts.Equal(Stats{Redelivered: 3, Handled: 2, Redeferred: 1}, r.Stats())
	ts.Equal([]string{"c"}, b.Retrieve())

	// The rolled window has no allowance left, so "c" waits for its end.
	ts.NoError(r.Run(context.Background()))
	ts.Equal(Stats{Redelivered: 4, Handled: 2, Redeferred: 2}, r.Stats())
	release, ok := b.NextRelease()
	ts.True(ok)
	ts.Equal(ts.clock.Now().Add(100*time.Millisecond), release)
	ts.Equal(100*time.Millisecond, r.NextDelay(nil))

	ts.Equal(2.0, testutil.ToFloat64(metrics.RedeliveriesTotal.WithLabelValues(ResultHandled)))
	ts.Equal(2.0, testutil.ToFloat64(metrics.RedeliveriesTotal.WithLabelValues(ResultRedeferred)))
	ts.Equal(0.0, testutil.ToFloat64(metrics.RedeliveriesTotal.WithLabelValues(ResultFailed)))
	apptestutil.RequireSamplesCountInHistogram(ts.T(), metrics.HandleDuration, 2)
}

func (ts *RedelivererTestSuite) TestRealignIdleWindow() {
	for _, realign := range []bool{false, true} {
		b := ts.newBucket(2, 100*time.Millisecond)
		ts.True(b.TryAdmit("a"))
		ts.clock.Advance(150 * time.Millisecond)
		// The window is over but its allowance is not consumed, so it's not rolled.
		ts.False(b.TryAdmit("b"))

		h := &recordingHandler{}
		r := New[string](b, h.Handle, ts.logRecorder, Opts{DisableIdleWindowRealign: !realign})
		ts.NoError(r.Run(context.Background()))

		if realign {
			ts.Equal([]string{"b"}, h.Items())
			ts.Equal(0, b.Len())
			_, found := ts.logRecorder.FindEntry("idle window realigned")
			ts.True(found)
		} else {
			ts.Empty(h.Items())
			ts.Equal(Stats{Redelivered: 1, Redeferred: 1}, r.Stats())
			ts.Equal([]string{"b"}, b.Retrieve())
			// "b" is ready but cannot be admitted, so the regular interval should be used.
			ts.Equal(time.Duration(0), r.NextDelay(nil))
		}
	}
}

func (ts *RedelivererTestSuite) TestIdleWindowRealignedByDefault() {
	b := ts.newBucket(2, 100*time.Millisecond)
	ts.True(b.TryAdmit("a"))
	ts.clock.Advance(time.Second)
	ts.False(b.TryAdmit("x"))

	h := &recordingHandler{}
	r := New[string](b, h.Handle, ts.logRecorder, Opts{})
	ts.NoError(r.Run(context.Background()))

	ts.Equal([]string{"x"}, h.Items())
	ts.Equal(Stats{Redelivered: 1, Handled: 1}, r.Stats())
	ts.Equal(0, b.Len())
	ts.Equal(time.Duration(0), r.NextDelay(nil))
}

func (ts *RedelivererTestSuite) TestNextDelayWithReadyItems() {
	b := ts.newBucket(1, 100*time.Millisecond)
	ts.True(b.TryAdmit("a"))
	ts.False(b.TryAdmit("b"))
	ts.False(b.TryAdmit("c"))
	ts.clock.Advance(100 * time.Millisecond)

	h := &recordingHandler{}
	r := New[string](b, h.Handle, ts.logRecorder, Opts{RateLimit: 1000, RateBurst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ts.NoError(r.Run(ctx))

	// The interrupted pass left ready items, the next one should follow immediately.
	ts.Equal([]string{"b", "c"}, b.Retrieve())
	ts.Equal(time.Millisecond, r.NextDelay(nil))
}

func (ts *RedelivererTestSuite) TestHandlerRetries() {
	b := ts.newBucket(1, 100*time.Millisecond)
	ts.True(b.TryAdmit("a"))
	ts.False(b.TryAdmit("b"))
	ts.clock.Advance(100 * time.Millisecond)
	ts.False(b.TryAdmit("c")) // rolls the window

	var calls atomic.Int32
	handler := func(ctx context.Context, item string) error {
		if calls.Inc() < 3 {
			return errors.New("downstream is busy")
		}
		return nil
	}
	r := New[string](b, handler, ts.logRecorder, Opts{
		RetryPolicy: ExponentialRetryPolicy{InitialInterval: time.Millisecond, MaxAttempts: 3},
	})
	ts.NoError(r.Run(context.Background()))

	ts.Equal(3, int(calls.Load()))
	ts.Equal(int64(1), r.Stats().Handled)
	ts.Equal(2, ts.logRecorder.CountEntries("redelivered item handling failed, retrying"))
}

func (ts *RedelivererTestSuite) TestHandlerFailure() {
	b := ts.newBucket(1, 100*time.Millisecond)
	ts.True(b.TryAdmit("a"))
	ts.False(b.TryAdmit("b"))
	ts.clock.Advance(100 * time.Millisecond)
	ts.False(b.TryAdmit("c"))

	errMalformed := errors.New("malformed item")
	var calls atomic.Int32
	handler := func(ctx context.Context, item string) error {
		calls.Inc()
		return errMalformed
	}
	r := New[string](b, handler, ts.logRecorder, Opts{
		RetryPolicy: ExponentialRetryPolicy{InitialInterval: time.Millisecond, MaxAttempts: 5},
		IsRetryable: func(err error) bool { return !errors.Is(err, errMalformed) },
	})
	ts.NoError(r.Run(context.Background()))

	ts.Equal(1, int(calls.Load()))
	ts.Equal(int64(1), r.Stats().Failed)
	entry, found := ts.logRecorder.FindEntry("redelivered item handling failed")
	ts.Require().True(found)
	field, found := entry.FindField("error")
	ts.Require().True(found)
	ts.ErrorIs(field.Any.(error), errMalformed)
}

func (ts *RedelivererTestSuite) TestCanceledContextKeepsItems() {
	b := ts.newBucket(1, 100*time.Millisecond)
	ts.True(b.TryAdmit("a"))
	ts.False(b.TryAdmit("b"))
	ts.False(b.TryAdmit("c"))
	ts.clock.Advance(100 * time.Millisecond)

	for _, opts := range []Opts{{}, {RateLimit: 10, RateBurst: 1}} {
		h := &recordingHandler{}
		r := New[string](b, h.Handle, ts.logRecorder, opts)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ts.NoError(r.Run(ctx))
		ts.Empty(h.Items())
		ts.Equal([]string{"b", "c"}, b.Retrieve())
	}
}

func TestRedeliverer_RateLimit(t *testing.T) {
	b, err := bucket.New[int](1, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, b.TryAdmit(0))
	for i := 1; i <= 5; i++ {
		require.False(t, b.TryAdmit(i))
	}
	time.Sleep(60 * time.Millisecond)

	r := New[int](b, func(ctx context.Context, item int) error {
		return nil
	}, nil, Opts{RateLimit: 20, RateBurst: 1})

	startTime := time.Now()
	require.NoError(t, r.Run(context.Background()))
	// 5 resubmissions with 20 per second and burst 1 take at least 4 intervals of 50ms.
	require.GreaterOrEqual(t, time.Since(startTime), 190*time.Millisecond)
	require.Equal(t, int64(5), r.Stats().Redelivered)
}

func TestDoWithRetry(t *testing.T) {
	t.Run("no policy means single call", func(t *testing.T) {
		var calls int
		err := doWithRetry(context.Background(), nil, nil, nil, func(ctx context.Context) error {
			calls++
			return errors.New("unavailable")
		})
		require.Error(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("custom policy", func(t *testing.T) {
		var calls int
		policy := RetryPolicyFunc(func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
		})
		err := doWithRetry(context.Background(), policy, nil, nil, func(ctx context.Context) error {
			calls++
			return errors.New("unavailable")
		})
		require.Error(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		policy := ExponentialRetryPolicy{InitialInterval: time.Millisecond, MaxAttempts: 10}
		err := doWithRetry(ctx, policy, nil, nil, func(ctx context.Context) error {
			return errors.New("unavailable")
		})
		require.Error(t, err)
	})
}
