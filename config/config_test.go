// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package config

import (
	"testing"
	"time"
)

func TestParseConfigInjectsDefaults(t *testing.T) {
	raw := []byte(`
[system]
meta_dirs = ["/var/lib/basedb/meta"]
data_dirs = ["/var/lib/basedb/data"]
`)
	cfg, err := ParseConfig(raw)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Server.IPAddr != defaultIPAddr {
		t.Errorf("IPAddr = %q, want %q", cfg.Server.IPAddr, defaultIPAddr)
	}
	if cfg.Server.Port != defaultPort {
		t.Errorf("Port = %d, want %d", cfg.Server.Port, defaultPort)
	}
	if cfg.Server.Compression != defaultCompression {
		t.Errorf("Compression = %q, want %q", cfg.Server.Compression, defaultCompression)
	}
	if cfg.ExecuteTimeoutDuration() != 30*time.Second {
		t.Errorf("ExecuteTimeoutDuration() = %v, want 30s", cfg.ExecuteTimeoutDuration())
	}
	if cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q, want %q", cfg.Addr(), "127.0.0.1:9000")
	}
}

func TestParseConfigExplicitValues(t *testing.T) {
	raw := []byte(`
[system]
meta_dirs = ["/meta1", "/meta2"]
data_dirs = ["/data"]

[server]
ip_addr = "0.0.0.0"
port = 9440
pool_min = 2
pool_max = 8
compression = "lz4"
execute_timeout = "5s"
query_timeout = "1m"
`)
	cfg, err := ParseConfig(raw)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if !cfg.CompressionEnabled() {
		t.Error("CompressionEnabled() = false, want true for \"lz4\"")
	}
	if cfg.QueryTimeoutDuration() != time.Minute {
		t.Errorf("QueryTimeoutDuration() = %v, want 1m", cfg.QueryTimeoutDuration())
	}
	if len(cfg.System.MetaDirs) != 2 {
		t.Errorf("MetaDirs = %v, want 2 entries", cfg.System.MetaDirs)
	}
	if cfg.Addr() != "0.0.0.0:9440" {
		t.Errorf("Addr() = %q, want %q", cfg.Addr(), "0.0.0.0:9440")
	}
}

func TestParseConfigRejectsUnknownKey(t *testing.T) {
	raw := []byte(`
[system]
meta_dirs = ["/meta"]
data_dirs = ["/data"]

[server]
bogus_option = true
`)
	if _, err := ParseConfig(raw); err == nil {
		t.Fatal("expected an error for an unrecognized option")
	}
}

func TestParseConfigRejectsInvalidCompression(t *testing.T) {
	raw := []byte(`
[system]
meta_dirs = ["/meta"]
data_dirs = ["/data"]

[server]
compression = "gzip"
`)
	if _, err := ParseConfig(raw); err == nil {
		t.Fatal("expected an error for an unsupported compression value")
	}
}

func TestParseConfigRequiresDirectories(t *testing.T) {
	if _, err := ParseConfig([]byte(`[server]`)); err == nil {
		t.Fatal("expected an error when system.meta_dirs/data_dirs are missing")
	}
}

func TestParseConfigRejectsPoolBoundsInverted(t *testing.T) {
	raw := []byte(`
[system]
meta_dirs = ["/meta"]
data_dirs = ["/data"]

[server]
pool_min = 10
pool_max = 2
`)
	if _, err := ParseConfig(raw); err == nil {
		t.Fatal("expected an error when pool_min exceeds pool_max")
	}
}
