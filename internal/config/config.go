// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package config loads efdstream settings from the environment.
package config

import (
	"time"

	"github.com/nxgtw/efdstream"
	"github.com/nxgtw/efdstream/internal/logging"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Prefix of all environment variables.
const Prefix = "efdstream"

// Config holds all settings.
type Config struct {
	ShmSize          int           `envconfig:"SHM_SIZE" default:"4096"`
	SlotBase         int           `envconfig:"SLOT_BASE" default:"3"`
	TerminateTimeout time.Duration `envconfig:"TERMINATE_TIMEOUT" default:"2s"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment   bool          `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from EFDSTREAM_* environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		ShmSize:          efdstream.DefaultBufferSize,
		SlotBase:         efdstream.FirstSlot,
		TerminateTimeout: efdstream.DefaultTerminateTimeout,
		LogLevel:         "info",
	}
}

// Validate checks the values.
func (cfg *Config) Validate() error {
	if cfg.ShmSize <= 0 {
		return errors.Errorf("invalid shm size %d", cfg.ShmSize)
	}
	if cfg.TerminateTimeout < 0 {
		return errors.Errorf("invalid terminate timeout %v", cfg.TerminateTimeout)
	}
	return cfg.Slots().Validate()
}

// Slots returns six consecutive slots starting with SlotBase.
func (cfg *Config) Slots() efdstream.SlotTable {
	return efdstream.SlotsFrom(cfg.SlotBase)
}

// Logging returns logger configuration.
func (cfg *Config) Logging() logging.Config {
	result := logging.DefaultConfig()
	result.Level = cfg.LogLevel
	result.Development = cfg.LogDevelopment
	return result
}

// Options returns link options for the configuration.
func (cfg *Config) Options() []efdstream.Option {
	return []efdstream.Option{
		efdstream.WithSlots(cfg.Slots()),
		efdstream.WithBufferSize(cfg.ShmSize),
		efdstream.WithTerminateTimeout(cfg.TerminateTimeout),
	}
}
