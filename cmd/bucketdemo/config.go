/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"fmt"
	"time"

	"github.com/acronis/go-throttledbucket/bucket"
	"github.com/acronis/go-throttledbucket/config"
	"github.com/acronis/go-throttledbucket/log"
	"github.com/acronis/go-throttledbucket/redelivery"
)

type appConfig struct {
	Log        *log.Config
	Bucket     *bucket.Config
	Redelivery *redelivery.Config
	Server     *serverConfig
}

func newAppConfig() *appConfig {
	return &appConfig{
		Log:        log.NewConfig(),
		Bucket:     bucket.NewConfig(),
		Redelivery: redelivery.NewConfig(),
		Server:     &serverConfig{},
	}
}

func (c *appConfig) configs() []config.Config {
	return []config.Config{c.Log, c.Bucket, c.Redelivery, c.Server}
}

const (
	cfgKeyServerAddress         = "address"
	cfgKeyServerShutdownTimeout = "shutdownTimeout"
)

const (
	defaultServerAddress         = ":8080"
	defaultServerShutdownTimeout = 5 * time.Second
)

type serverConfig struct {
	Address         string
	ShutdownTimeout config.TimeDuration
}

func (c *serverConfig) KeyPrefix() string {
	return "server"
}

func (c *serverConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyServerAddress, defaultServerAddress)
	dp.SetDefault(cfgKeyServerShutdownTimeout, defaultServerShutdownTimeout.String())
}

func (c *serverConfig) Set(dp config.DataProvider) error {
	var err error
	if c.Address, err = dp.GetString(cfgKeyServerAddress); err != nil {
		return err
	}
	shutdownTimeout, err := dp.GetDuration(cfgKeyServerShutdownTimeout)
	if err != nil {
		return err
	}
	if shutdownTimeout <= 0 {
		return dp.WrapKeyErr(cfgKeyServerShutdownTimeout, fmt.Errorf("should be positive"))
	}
	c.ShutdownTimeout = config.TimeDuration(shutdownTimeout)
	return nil
}
