/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package bucket

import (
	"fmt"
	"time"

	"github.com/acronis/go-throttledbucket/config"
)

const cfgDefaultKeyPrefix = "bucket"

const (
	cfgKeyMaxRate = "maxRate"
	cfgKeyWindow  = "window"
	cfgKeyMaxKeys = "maxKeys"
)

// Default values.
const (
	DefaultMaxRate = 1
	DefaultWindow  = time.Second
	DefaultMaxKeys = 0
)

// Config represents a set of configuration parameters for the throttled bucket.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// MaxRate is the maximum number of admissions per window.
	MaxRate int `mapstructure:"maxRate" yaml:"maxRate" json:"maxRate"`

	// Window is the length of the admission window.
	Window config.TimeDuration `mapstructure:"window" yaml:"window" json:"window"`

	// MaxKeys limits the number of per-key buckets kept by Keyed.
	// Zero means no limit.
	MaxKeys int `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	cfg := NewConfig(options...)
	cfg.MaxRate = DefaultMaxRate
	cfg.Window = config.TimeDuration(DefaultWindow)
	cfg.MaxKeys = DefaultMaxKeys
	return cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the bucket in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxRate, DefaultMaxRate)
	dp.SetDefault(cfgKeyWindow, DefaultWindow.String())
	dp.SetDefault(cfgKeyMaxKeys, DefaultMaxKeys)
}

// Set sets bucket configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.MaxRate, err = dp.GetInt(cfgKeyMaxRate); err != nil {
		return err
	}
	if c.MaxRate <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxRate, fmt.Errorf("%w: should be positive", ErrInvalidConfiguration))
	}

	var window time.Duration
	if window, err = dp.GetDuration(cfgKeyWindow); err != nil {
		return err
	}
	if window <= 0 {
		return dp.WrapKeyErr(cfgKeyWindow, fmt.Errorf("%w: should be positive", ErrInvalidConfiguration))
	}
	c.Window = config.TimeDuration(window)

	if c.MaxKeys, err = dp.GetInt(cfgKeyMaxKeys); err != nil {
		return err
	}
	if c.MaxKeys < 0 {
		return dp.WrapKeyErr(cfgKeyMaxKeys, fmt.Errorf("%w: should be >= 0", ErrInvalidConfiguration))
	}

	return nil
}
