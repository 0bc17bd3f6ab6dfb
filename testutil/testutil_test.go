/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type recordingT struct {
	errors int
	failed bool
}

func (t *recordingT) Errorf(string, ...interface{}) { t.errors++ }
func (t *recordingT) FailNow()                      { t.failed = true }

func TestRequireNoErrorInChannel(t *testing.T) {
	errCh := make(chan error, 1)
	RequireNoErrorInChannel(t, errCh)

	errCh <- errors.New("unit failed")
	rt := &recordingT{}
	RequireNoErrorInChannel(rt, errCh)
	require.True(t, rt.failed)
}

func TestSamplesCountInHistogram(t *testing.T) {
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "handle_duration_seconds", Help: "Handle duration."})
	hist.Observe(0.1)
	hist.Observe(0.2)
	RequireSamplesCountInHistogram(t, hist, 2)

	rt := &recordingT{}
	hist = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "handle_duration_seconds", Help: "Handle duration."})
	require.False(t, AssertSamplesCountInHistogram(rt, hist, 1))
	require.Equal(t, 1, rt.errors)
}
