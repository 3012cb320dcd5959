// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/keyopt/internal/effort"
	"github.com/verte-zerg/keyopt/internal/layout"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Run    RunConfig    `toml:"run"`
	Effort EffortConfig `toml:"effort"`
	Output OutputConfig `toml:"output"`
}

// RunConfig maps optimisation settings.
type RunConfig struct {
	Layout      *string  `toml:"layout"`
	LayoutFile  *string  `toml:"layout-file"`
	Corpus      *string  `toml:"corpus"`
	Wordlist    *string  `toml:"wordlist"`
	Words       *int     `toml:"words"`
	Baseline    *string  `toml:"baseline"`
	Temperature *float64 `toml:"temperature"`
	Epoch       *int     `toml:"epoch"`
	CoolingRate *float64 `toml:"cooling-rate"`
	Iterations  *int     `toml:"iterations"`
	Seed        *int64   `toml:"seed"`
	Chains      *int     `toml:"chains"`
	Save        *string  `toml:"save"`
}

// EffortConfig overrides the effort model.
type EffortConfig struct {
	FingerCPM        []float64 `toml:"finger-cpm"`
	RowCPM           []float64 `toml:"row-cpm"`
	Weights          []float64 `toml:"weights"`
	DistanceExponent *int      `toml:"distance-exponent"`
	DoubleFinger     *float64  `toml:"double-finger"`
	DoubleHand       *float64  `toml:"double-hand"`
}

// OutputConfig maps reporting settings.
type OutputConfig struct {
	LogFile *string `toml:"log-file"`
	Quiet   *bool   `toml:"quiet"`
	TUI     *bool   `toml:"tui"`
	NoDB    *bool   `toml:"no-db"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Apply overlays the configured values onto p.
func (c EffortConfig) Apply(p effort.Params) (effort.Params, error) {
	if c.FingerCPM != nil {
		if len(c.FingerCPM) != layout.FingerCount {
			return p, fmt.Errorf("effort.finger-cpm needs %d values, got %d", layout.FingerCount, len(c.FingerCPM))
		}
		copy(p.FingerCPM[:], c.FingerCPM)
	}
	if c.RowCPM != nil {
		if len(c.RowCPM) != layout.RowCount {
			return p, fmt.Errorf("effort.row-cpm needs %d values, got %d", layout.RowCount, len(c.RowCPM))
		}
		copy(p.RowCPM[:], c.RowCPM)
	}
	if c.Weights != nil {
		if len(c.Weights) != len(p.Weights) {
			return p, fmt.Errorf("effort.weights needs %d values, got %d", len(p.Weights), len(c.Weights))
		}
		copy(p.Weights[:], c.Weights)
	}
	if c.DistanceExponent != nil {
		p.DistanceExponent = *c.DistanceExponent
	}
	if c.DoubleFinger != nil {
		p.DoubleFingerEffort = *c.DoubleFinger
	}
	if c.DoubleHand != nil {
		p.DoubleHandEffort = *c.DoubleHand
	}
	return p, nil
}
