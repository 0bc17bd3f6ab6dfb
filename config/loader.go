/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"errors"
	"fmt"
	"io"
)

// Loader fills configuration objects with values of its DataProvider.
// Defaults of all objects are registered before any value is read, so objects sharing keys see the same defaults.
type Loader struct {
	DataProvider DataProvider
}

// NewDefaultLoader creates a Loader backed by viper that also reads environment variables with the given prefix.
func NewDefaultLoader(envVarsPrefix string) *Loader {
	va := NewViperAdapter()
	va.UseEnvVars(envVarsPrefix)
	return NewLoader(va)
}

// NewLoader creates a Loader reading values from dp.
func NewLoader(dp DataProvider) *Loader {
	return &Loader{DataProvider: dp}
}

// LoadFromFile reads the file into the DataProvider and loads cfgs.
func (l *Loader) LoadFromFile(path string, dataType DataType, cfgs ...Config) error {
	if err := l.DataProvider.SetFromFile(path, dataType); err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	return l.Load(cfgs...)
}

// LoadFromReader reads the data into the DataProvider and loads cfgs.
func (l *Loader) LoadFromReader(reader io.Reader, dataType DataType, cfgs ...Config) error {
	if err := l.DataProvider.SetFromReader(reader, dataType); err != nil {
		return fmt.Errorf("read config data: %w", err)
	}
	return l.Load(cfgs...)
}

// Load sets values of cfgs from the data already read by the DataProvider.
// A config implementing KeyPrefixProvider reads its keys under the prefix.
// Errors of all configs are returned joined.
func (l *Loader) Load(cfgs ...Config) error {
	providers := make([]DataProvider, len(cfgs))
	for i, cfg := range cfgs {
		providers[i] = l.providerFor(cfg)
		cfg.SetProviderDefaults(providers[i])
	}
	var errs []error
	for i, cfg := range cfgs {
		if err := cfg.Set(providers[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Loader) providerFor(cfg Config) DataProvider {
	if kp, ok := cfg.(KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(l.DataProvider, kp.KeyPrefix())
	}
	return l.DataProvider
}
