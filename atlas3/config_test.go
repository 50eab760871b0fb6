// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package atlas3

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigValidDefaults(t *testing.T) {
	cfg := Config{Serial: SerialConfig{Address: "/dev/ttyUSB0"}}
	if err := cfg.Valid(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial.BaudRate != DefaultBaudRate {
		t.Errorf("baud rate = %d, want %d", cfg.Serial.BaudRate, DefaultBaudRate)
	}
	if cfg.Serial.DataBits != 8 {
		t.Errorf("data bits = %d, want 8", cfg.Serial.DataBits)
	}
	if cfg.ResponseTimeout != DefaultResponseTimeout {
		t.Errorf("response timeout = %v, want %v", cfg.ResponseTimeout, DefaultResponseTimeout)
	}
	if cfg.BistTimeout != DefaultBistTimeout {
		t.Errorf("bist timeout = %v, want %v", cfg.BistTimeout, DefaultBistTimeout)
	}
	if cfg.RetryLimit != DefaultRetryLimit {
		t.Errorf("retry limit = %d, want %d", cfg.RetryLimit, DefaultRetryLimit)
	}
	if cfg.Checksum != "sum8" {
		t.Errorf("checksum = %q, want sum8", cfg.Checksum)
	}
}

func TestConfigValidRejects(t *testing.T) {
	base := func() Config {
		cfg := DefaultConfig()
		cfg.Serial.Address = "/dev/ttyUSB0"
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing address", func(c *Config) { c.Serial.Address = "" }},
		{"negative baud rate", func(c *Config) { c.Serial.BaudRate = -9600 }},
		{"response timeout too small", func(c *Config) { c.ResponseTimeout = 10 * time.Millisecond }},
		{"response timeout too large", func(c *Config) { c.ResponseTimeout = 2 * time.Minute }},
		{"bist shorter than response", func(c *Config) { c.BistTimeout = time.Second; c.ResponseTimeout = 2 * time.Second }},
		{"retry limit out of range", func(c *Config) { c.RetryLimit = RetryLimitMax + 1 }},
		{"negative retry limit", func(c *Config) { c.RetryLimit = -1 }},
		{"unknown checksum", func(c *Config) { c.Checksum = "md5" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			if err := cfg.Valid(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	raw := `
serial:
  address: /dev/ttyACM1
  baud_rate: 921600
response_timeout_ms: 500
retry_limit: 4
checksum: crc16
`
	path := filepath.Join(t.TempDir(), "atlas3.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial.Address != "/dev/ttyACM1" || cfg.Serial.BaudRate != 921600 {
		t.Errorf("serial = %+v", cfg.Serial)
	}
	if cfg.ResponseTimeout != 500*time.Millisecond {
		t.Errorf("response timeout = %v", cfg.ResponseTimeout)
	}
	if cfg.RetryLimit != 4 || cfg.Checksum != "crc16" {
		t.Errorf("session knobs = (%d, %q)", cfg.RetryLimit, cfg.Checksum)
	}
	// unset fields keep their defaults
	if cfg.Serial.DataBits != 8 || cfg.BistTimeout != DefaultBistTimeout {
		t.Errorf("defaults not preserved: %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas3.yaml")
	if err := os.WriteFile(path, []byte("serial:\n  address: ''\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error")
	}
}
