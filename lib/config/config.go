// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the palaver client.
//
// Configuration is loaded from a single file specified by:
//   - PALAVER_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file is
// optional — every value has a flag or interactive prompt — but when a
// path is given the file must exist and parse. This keeps startup
// deterministic with no hidden overrides.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the operator's defaults for the palaver client. Flags
// override config values; prompts fill whatever remains.
type Config struct {
	// DisplayName is the name broadcast in AboutMe replies. Empty
	// means prompt at startup.
	DisplayName string `yaml:"display_name"`

	// Listen is the TCP listen address for the mesh node, e.g.
	// ":7431" or "192.168.1.10:7431". Empty means ":0" (random port).
	Listen string `yaml:"listen"`

	// Advertise lists extra addresses to embed in tickets and mesh
	// hellos, for hosts whose listen address is not reachable as-is
	// (port forwarding, multiple interfaces).
	Advertise []string `yaml:"advertise,omitempty"`

	// LogOutput is a file path that receives JSON log records in
	// addition to the in-TUI status display. Empty disables the file.
	LogOutput string `yaml:"log_output,omitempty"`
}

// Load loads configuration from the PALAVER_CONFIG environment
// variable. Returns a zero Config when the variable is not set — the
// config file is optional.
func Load() (*Config, error) {
	path := os.Getenv("PALAVER_CONFIG")
	if path == "" {
		return &Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path. Unlike Load,
// the file must exist: an explicitly named config that cannot be read
// is an operator error, not a soft default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			errs = append(errs, fmt.Errorf("listen %q is not host:port: %w", c.Listen, err))
		}
	}
	for _, address := range c.Advertise {
		if _, _, err := net.SplitHostPort(address); err != nil {
			errs = append(errs, fmt.Errorf("advertise %q is not host:port: %w", address, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
