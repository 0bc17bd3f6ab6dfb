/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-throttledbucket/config"
	"github.com/acronis/go-throttledbucket/log"
	"github.com/acronis/go-throttledbucket/log/logtest"
)

func TestAppConfig(t *testing.T) {
	cfg := newAppConfig()
	err := config.NewDefaultLoader(envVarsPrefix).LoadFromFile("config.example.yml", config.DataTypeYAML, cfg.configs()...)
	require.NoError(t, err)

	require.Equal(t, log.FormatText, cfg.Log.Format)
	require.Equal(t, 5, cfg.Bucket.MaxRate)
	require.Equal(t, time.Second, time.Duration(cfg.Bucket.Window))
	require.Equal(t, 100.0, cfg.Redelivery.RateLimit)
	require.Equal(t, 3, cfg.Redelivery.Retry.MaxAttempts)
	require.Equal(t, ":8080", cfg.Server.Address)
	require.Equal(t, 5*time.Second, time.Duration(cfg.Server.ShutdownTimeout))

	unit, err := newUnit(cfg, logtest.NewRecorder())
	require.NoError(t, err)
	require.NotNil(t, unit)
}

func TestAppConfig_EnvOverride(t *testing.T) {
	t.Setenv("BUCKETDEMO_BUCKET_MAXRATE", "42")
	t.Setenv("BUCKETDEMO_SERVER_ADDRESS", "127.0.0.1:9090")

	cfg := newAppConfig()
	err := config.NewDefaultLoader(envVarsPrefix).LoadFromFile("config.example.yml", config.DataTypeYAML, cfg.configs()...)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.Bucket.MaxRate)
	require.Equal(t, "127.0.0.1:9090", cfg.Server.Address)
}
