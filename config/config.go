// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package config implements the TOML configuration file format §6.3
// defines: system directories, listen address, connection pool bounds,
// wire compression, and the two execution timeouts.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the parsed, defaulted contents of a config file.
type Config struct {
	System SystemConfig `toml:"system"`
	Server ServerConfig `toml:"server"`
}

// SystemConfig names the on-disk base paths the catalog and part store
// open (spec §6.2).
type SystemConfig struct {
	MetaDirs []string `toml:"meta_dirs"`
	DataDirs []string `toml:"data_dirs"`
}

// ServerConfig is every `server.*` option §6.3 enumerates.
type ServerConfig struct {
	IPAddr         string `toml:"ip_addr"`
	Port           int    `toml:"port"`
	PoolMin        int    `toml:"pool_min"`
	PoolMax        int    `toml:"pool_max"`
	Compression    string `toml:"compression"`
	ExecuteTimeout string `toml:"execute_timeout"`
	QueryTimeout   string `toml:"query_timeout"`
}

const (
	defaultIPAddr         = "127.0.0.1"
	defaultPort           = 9000
	defaultPoolMin        = 1
	defaultPoolMax        = 64
	defaultCompression    = "none"
	defaultExecuteTimeout = "30s"
	defaultQueryTimeout   = "300s"
)

// ParseConfig decodes raw as TOML into a Config, rejecting any key it
// does not recognize (spec §6.3: "others are rejected"), then injects
// defaults for every option the file omitted.
func ParseConfig(raw []byte) (*Config, error) {
	var cfg Config
	meta, err := toml.Decode(string(raw), &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parsing TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: unrecognized option %q", undecoded[0].String())
	}
	if err := cfg.validateAndInjectDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validateAndInjectDefaults() error {
	if c.Server.IPAddr == "" {
		c.Server.IPAddr = defaultIPAddr
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.PoolMin == 0 {
		c.Server.PoolMin = defaultPoolMin
	}
	if c.Server.PoolMax == 0 {
		c.Server.PoolMax = defaultPoolMax
	}
	if c.Server.PoolMin > c.Server.PoolMax {
		return fmt.Errorf("config: server.pool_min (%d) exceeds server.pool_max (%d)", c.Server.PoolMin, c.Server.PoolMax)
	}
	if c.Server.Compression == "" {
		c.Server.Compression = defaultCompression
	}
	if c.Server.Compression != "none" && c.Server.Compression != "lz4" {
		return fmt.Errorf("config: server.compression must be %q or %q, got %q", "none", "lz4", c.Server.Compression)
	}
	if c.Server.ExecuteTimeout == "" {
		c.Server.ExecuteTimeout = defaultExecuteTimeout
	}
	if _, err := time.ParseDuration(c.Server.ExecuteTimeout); err != nil {
		return fmt.Errorf("config: server.execute_timeout: %w", err)
	}
	if c.Server.QueryTimeout == "" {
		c.Server.QueryTimeout = defaultQueryTimeout
	}
	if _, err := time.ParseDuration(c.Server.QueryTimeout); err != nil {
		return fmt.Errorf("config: server.query_timeout: %w", err)
	}
	if len(c.System.MetaDirs) == 0 {
		return fmt.Errorf("config: system.meta_dirs must name at least one directory")
	}
	if len(c.System.DataDirs) == 0 {
		return fmt.Errorf("config: system.data_dirs must name at least one directory")
	}
	return nil
}

// ExecuteTimeoutDuration returns the parsed plan-phase timeout (spec
// §5's "execute_timeout ... bounds plan ... phases").
func (c Config) ExecuteTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Server.ExecuteTimeout)
	return d
}

// QueryTimeoutDuration returns the parsed execution-phase timeout (spec
// §5's "query_timeout ... bounds ... execution phases").
func (c Config) QueryTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Server.QueryTimeout)
	return d
}

// CompressionEnabled reports whether the negotiated wire compression
// this server advertises during Hello should be lz4.
func (c Config) CompressionEnabled() bool {
	return c.Server.Compression == "lz4"
}

// Addr is the listen address Server.Serve binds, combining ip_addr and
// port into the form net.Listen expects.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.IPAddr, c.Server.Port)
}
