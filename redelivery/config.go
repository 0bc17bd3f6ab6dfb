/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package redelivery

import (
	"errors"
	"fmt"
	"time"

	"github.com/acronis/go-throttledbucket/config"
)

const cfgDefaultKeyPrefix = "redelivery"

const (
	cfgKeyInterval             = "interval"
	cfgKeyRateLimit            = "rateLimit"
	cfgKeyRateBurst            = "rateBurst"
	cfgKeyRealignIdleWindow    = "realignIdleWindow"
	cfgKeyRetryMaxAttempts     = "retry.maxAttempts"
	cfgKeyRetryInitialInterval = "retry.initialInterval"
)

// Default values.
const (
	DefaultInterval             = time.Second
	DefaultRateLimit            = 0
	DefaultRateBurst            = 1
	DefaultRealignIdleWindow    = true
	DefaultRetryMaxAttempts     = 3
	DefaultRetryInitialInterval = 100 * time.Millisecond
)

// ErrInvalidConfiguration is returned when redelivery configuration values are out of range.
var ErrInvalidConfiguration = errors.New("invalid redelivery configuration")

// RetryConfig represents configuration of handler retries.
type RetryConfig struct {
	MaxAttempts     int                 `mapstructure:"maxAttempts" yaml:"maxAttempts" json:"maxAttempts"`
	InitialInterval config.TimeDuration `mapstructure:"initialInterval" yaml:"initialInterval" json:"initialInterval"`
}

// Config represents a set of configuration parameters for redelivery.
type Config struct {
	// Interval is the maximum delay between redelivery passes.
	Interval config.TimeDuration `mapstructure:"interval" yaml:"interval" json:"interval"`

	// RateLimit limits resubmissions per second. Zero means no limit.
	RateLimit float64 `mapstructure:"rateLimit" yaml:"rateLimit" json:"rateLimit"`

	// RateBurst is the maximum number of resubmissions performed at once.
	RateBurst int `mapstructure:"rateBurst" yaml:"rateBurst" json:"rateBurst"`

	// RealignIdleWindow enables resetting of the bucket window that elapsed with allowance left.
	RealignIdleWindow bool `mapstructure:"realignIdleWindow" yaml:"realignIdleWindow" json:"realignIdleWindow"`

	Retry RetryConfig `mapstructure:"retry" yaml:"retry" json:"retry"`

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
	cfg.Interval = config.TimeDuration(DefaultInterval)
	cfg.RateLimit = DefaultRateLimit
	cfg.RateBurst = DefaultRateBurst
	cfg.RealignIdleWindow = DefaultRealignIdleWindow
	cfg.Retry = RetryConfig{
		MaxAttempts:     DefaultRetryMaxAttempts,
		InitialInterval: config.TimeDuration(DefaultRetryInitialInterval),
	}
	return cfg
}

// KeyPrefix implements config.KeyPrefixProvider.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults implements config.Config.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyInterval, DefaultInterval.String())
	dp.SetDefault(cfgKeyRateLimit, DefaultRateLimit)
	dp.SetDefault(cfgKeyRateBurst, DefaultRateBurst)
	dp.SetDefault(cfgKeyRealignIdleWindow, DefaultRealignIdleWindow)
	dp.SetDefault(cfgKeyRetryMaxAttempts, DefaultRetryMaxAttempts)
	dp.SetDefault(cfgKeyRetryInitialInterval, DefaultRetryInitialInterval.String())
}

// Set implements config.Config.
func (c *Config) Set(dp config.DataProvider) error {
	interval, err := dp.GetDuration(cfgKeyInterval)
	if err != nil {
		return err
	}
	if interval <= 0 {
		return dp.WrapKeyErr(cfgKeyInterval, fmt.Errorf("%w: should be positive", ErrInvalidConfiguration))
	}
	c.Interval = config.TimeDuration(interval)

	if c.RateLimit, err = dp.GetFloat64(cfgKeyRateLimit); err != nil {
		return err
	}
	if c.RateLimit < 0 {
		return dp.WrapKeyErr(cfgKeyRateLimit, fmt.Errorf("%w: should be >= 0", ErrInvalidConfiguration))
	}

	if c.RateBurst, err = dp.GetInt(cfgKeyRateBurst); err != nil {
		return err
	}
	if c.RateBurst <= 0 {
		return dp.WrapKeyErr(cfgKeyRateBurst, fmt.Errorf("%w: should be positive", ErrInvalidConfiguration))
	}

	if c.RealignIdleWindow, err = dp.GetBool(cfgKeyRealignIdleWindow); err != nil {
		return err
	}

	if c.Retry.MaxAttempts, err = dp.GetInt(cfgKeyRetryMaxAttempts); err != nil {
		return err
	}
	if c.Retry.MaxAttempts < 0 {
		return dp.WrapKeyErr(cfgKeyRetryMaxAttempts, fmt.Errorf("%w: should be >= 0", ErrInvalidConfiguration))
	}

	initialInterval, err := dp.GetDuration(cfgKeyRetryInitialInterval)
	if err != nil {
		return err
	}
	if initialInterval < 0 {
		return dp.WrapKeyErr(cfgKeyRetryInitialInterval, fmt.Errorf("%w: should be >= 0", ErrInvalidConfiguration))
	}
	c.Retry.InitialInterval = config.TimeDuration(initialInterval)

	return nil
}
