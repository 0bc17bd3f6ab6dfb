/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-throttledbucket/config"
)

type AppConfig struct {
	Log *Config `mapstructure:"log" json:"log" yaml:"log"`
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfgDataType config.DataType
		cfgData     string
		expectedCfg func() *Config
	}{
		{
			name:        "default config",
			cfgDataType: config.DataTypeYAML,
			cfgData:     `log: {}`,
			expectedCfg: func() *Config { return NewDefaultConfig() },
		},
		{
			name:        "yaml config",
			cfgDataType: config.DataTypeYAML,
			cfgData: `
log:
  level: WARN
  format: text
  output: file
  nocolor: true
  file:
    path: bucket.log
    rotation:
      compress: true
      maxSize: 100M
      maxBackups: 42
      maxAgeDays: 7
  addCaller: true
`,
			expectedCfg: func() *Config {
				cfg := NewDefaultConfig()
				cfg.Level = LevelWarn
				cfg.Format = FormatText
				cfg.Output = OutputFile
				cfg.NoColor = true
				cfg.File.Path = "bucket.log"
				cfg.File.Rotation.Compress = true
				cfg.File.Rotation.MaxSize = 100 * 1024 * 1024
				cfg.File.Rotation.MaxBackups = 42
				cfg.File.Rotation.MaxAgeDays = 7
				cfg.AddCaller = true
				return cfg
			},
		},
		{
			name:        "json config",
			cfgDataType: config.DataTypeJSON,
			cfgData:     `{"log": {"level": "debug", "output": "stderr"}}`,
			expectedCfg: func() *Config {
				cfg := NewDefaultConfig()
				cfg.Level = LevelDebug
				cfg.Output = OutputStderr
				return cfg
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appCfg := AppConfig{Log: NewConfig()}
			cfgLoader := config.NewLoader(config.NewViperAdapter())
			err := cfgLoader.LoadFromReader(bytes.NewBufferString(tt.cfgData), tt.cfgDataType, appCfg.Log)
			require.NoError(t, err)
			require.Equal(t, tt.expectedCfg(), appCfg.Log)
		})
	}
}

func TestConfig_Errors(t *testing.T) {
	tests := []struct {
		name       string
		cfgData    string
		wantErrMsg string
	}{
		{
			name:       "unknown level",
			cfgData:    "log:\n  level: verbose\n",
			wantErrMsg: `log.level: unknown value "verbose"`,
		},
		{
			name:       "file output without path",
			cfgData:    "log:\n  output: file\n",
			wantErrMsg: "log.file.path: cannot be empty",
		},
		{
			name:       "too small rotation size",
			cfgData:    "log:\n  file:\n    rotation:\n      maxSize: 1K\n",
			wantErrMsg: "log.file.rotation.maxSize: should be >= 1M",
		},
		{
			name:       "negative max age",
			cfgData:    "log:\n  file:\n    rotation:\n      maxAgeDays: -1\n",
			wantErrMsg: "log.file.rotation.maxAgeDays: should be >= 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
				bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, NewConfig())
			require.ErrorContains(t, err, tt.wantErrMsg)
		})
	}
}

func TestConfig_YAMLUnmarshal(t *testing.T) {
	appCfg := AppConfig{Log: NewDefaultConfig()}
	require.NoError(t, yaml.Unmarshal([]byte("log:\n  level: error\n  file:\n    rotation:\n      maxSize: 10M\n"), &appCfg))
	require.Equal(t, LevelError, appCfg.Log.Level)
	require.Equal(t, config.ByteSize(10*1024*1024), appCfg.Log.File.Rotation.MaxSize)
	require.Equal(t, DefaultFileRotationMaxBackups, appCfg.Log.File.Rotation.MaxBackups)
}
