/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package bucket

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-throttledbucket/config"
)

type AppConfig struct {
	Bucket *Config `mapstructure:"bucket" json:"bucket" yaml:"bucket"`
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfgDataType config.DataType
		cfgData     string
		expectedCfg func() *Config
	}{
		{
			name:        "defaults",
			cfgDataType: config.DataTypeYAML,
			cfgData:     `bucket: {}`,
			expectedCfg: func() *Config { return NewDefaultConfig() },
		},
		{
			name:        "yaml config",
			cfgDataType: config.DataTypeYAML,
			cfgData: `
bucket:
  maxRate: 10
  window: 6s
  maxKeys: 1000
`,
			expectedCfg: func() *Config {
				cfg := NewDefaultConfig()
				cfg.MaxRate = 10
				cfg.Window = config.TimeDuration(6 * time.Second)
				cfg.MaxKeys = 1000
				return cfg
			},
		},
		{
			name:        "json config",
			cfgDataType: config.DataTypeJSON,
			cfgData:     `{"bucket": {"maxRate": 5, "window": "100ms"}}`,
			expectedCfg: func() *Config {
				cfg := NewDefaultConfig()
				cfg.MaxRate = 5
				cfg.Window = config.TimeDuration(100 * time.Millisecond)
				return cfg
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appCfg := AppConfig{Bucket: NewConfig()}
			cfgLoader := config.NewLoader(config.NewViperAdapter())
			err := cfgLoader.LoadFromReader(bytes.NewBufferString(tt.cfgData), tt.cfgDataType, appCfg.Bucket)
			require.NoError(t, err)
			require.Equal(t, tt.expectedCfg(), appCfg.Bucket)

			b, err := NewFromConfig[string](appCfg.Bucket, Opts{})
			require.NoError(t, err)
			require.Equal(t, appCfg.Bucket.MaxRate, b.Stats().MaxRate)
			require.Equal(t, time.Duration(appCfg.Bucket.Window), b.Stats().Window)
		})
	}
}

func TestConfig_YAMLUnmarshal(t *testing.T) {
	appCfg := AppConfig{Bucket: NewDefaultConfig()}
	require.NoError(t, yaml.Unmarshal([]byte("bucket:\n  maxRate: 3\n  window: 2m\n"), &appCfg))
	require.Equal(t, 3, appCfg.Bucket.MaxRate)
	require.Equal(t, config.TimeDuration(2*time.Minute), appCfg.Bucket.Window)
	require.Equal(t, DefaultMaxKeys, appCfg.Bucket.MaxKeys)
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name       string
		cfgData    string
		wantErrMsg string
	}{
		{name: "negative rate", cfgData: "bucket:\n  maxRate: -1\n", wantErrMsg: "bucket.maxRate"},
		{name: "zero window", cfgData: "bucket:\n  window: 0s\n", wantErrMsg: "bucket.window"},
		{name: "negative max keys", cfgData: "bucket:\n  maxKeys: -5\n", wantErrMsg: "bucket.maxKeys"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
				bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, cfg)
			require.ErrorIs(t, err, ErrInvalidConfiguration)
			require.ErrorContains(t, err, tt.wantErrMsg)
		})
	}
}
