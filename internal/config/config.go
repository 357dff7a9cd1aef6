// Copyright 2026 The Vifei Authors
// This file is part of Vifei.
//
// Vifei is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Vifei is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Vifei. If not, see <http://www.gnu.org/licenses/>.

// Package config loads vifei.toml. The core pipeline never invents a value:
// every tunable has a documented default, applied here, so a missing or
// partial config file still produces a fully-specified Config.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultInlineThreshold matches the spec's 16 KiB inline payload cutoff.
	DefaultInlineThreshold = 16 * 1024
	// MinInlineThreshold and MaxInlineThreshold bound an override: a
	// deployment may tune the cutoff, but never far enough to defeat its
	// purpose (too small: everything offloads; too large: the log takes on
	// blob-sized lines).
	MinInlineThreshold = 1 * 1024
	MaxInlineThreshold = 1 * 1024 * 1024

	DefaultRaiseThreshold = 0.80
	DefaultClearThreshold = 0.50
)

// Backpressure holds the tunable thresholds for internal/backpressure.
type Backpressure struct {
	RaiseThreshold float64 `toml:"raise_threshold"`
	ClearThreshold float64 `toml:"clear_threshold"`
}

// Logging holds the operator-facing logging sinks (distinct from the event
// log, which is truth, not diagnostics).
type Logging struct {
	FilePath   string `toml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Level      string `toml:"level"`
}

// Config is the fully-resolved, defaulted vifei.toml shape.
type Config struct {
	DataDir              string       `toml:"data_dir"`
	InlineThreshold      int          `toml:"inline_threshold"`
	VerifyBlobsOnRead    bool         `toml:"verify_blobs_on_read"`
	FixturePath          string       `toml:"fixture_path"`
	ScannerRulePackPath  string       `toml:"scanner_rule_pack_path"`
	Backpressure         Backpressure `toml:"backpressure"`
	Logging              Logging      `toml:"logging"`
}

// Default returns a Config with every field set to its documented default,
// suitable for use when no vifei.toml is present.
func Default() *Config {
	return &Config{
		DataDir:           "./vifei-data",
		InlineThreshold:   DefaultInlineThreshold,
		VerifyBlobsOnRead: false,
		Backpressure: Backpressure{
			RaiseThreshold: DefaultRaiseThreshold,
			ClearThreshold: DefaultClearThreshold,
		},
		Logging: Logging{
			FilePath:   "./vifei-data/vifei.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Level:      "info",
		},
	}
}

// Load reads path, overlays it onto Default(), validates bounds, and
// returns the resolved Config. A missing file is not an error: Load returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.InlineThreshold < MinInlineThreshold || c.InlineThreshold > MaxInlineThreshold {
		return fmt.Errorf("inline_threshold %d out of bounds [%d,%d]", c.InlineThreshold, MinInlineThreshold, MaxInlineThreshold)
	}
	if c.Backpressure.RaiseThreshold <= c.Backpressure.ClearThreshold {
		return fmt.Errorf("backpressure.raise_threshold (%v) must exceed clear_threshold (%v)", c.Backpressure.RaiseThreshold, c.Backpressure.ClearThreshold)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	return nil
}
