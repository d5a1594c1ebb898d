package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cavarest/elemental-dragon/internal/retry"
	"github.com/cavarest/elemental-dragon/internal/settle"
)

// Suite is a YAML file naming which scenarios to run and how.
type Suite struct {
	Name     string            `yaml:"name"`
	Player   string            `yaml:"player"`
	Include  []string          `yaml:"include"`
	Exclude  []string          `yaml:"exclude"`
	Tags     []string          `yaml:"tags"`
	Assert   *bool             `yaml:"assert"`
	Timeouts *Timeouts         `yaml:"timeouts"`
	Settle   *settle.Intervals `yaml:"settle"`
	Retry    *retry.Policy     `yaml:"retry"`
}

// ParseSuite decodes a suite document.
func ParseSuite(data []byte) (Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Suite{}, fmt.Errorf("parse suite: %w", err)
	}
	return s, nil
}

// LoadSuite reads and decodes a suite file.
func LoadSuite(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("read suite: %w", err)
	}
	return ParseSuite(data)
}

// Apply overlays the suite's settings on cfg. Zero durations in a partial
// block keep cfg's values.
func (s Suite) Apply(cfg Config) Config {
	if s.Player != "" {
		cfg.Player = s.Player
	}
	if s.Assert != nil {
		cfg.Assertions = *s.Assert
	}
	if t := s.Timeouts; t != nil {
		overlay(&cfg.Timeouts.Connection, t.Connection)
		overlay(&cfg.Timeouts.Command, t.Command)
		overlay(&cfg.Timeouts.Effect, t.Effect)
		overlay(&cfg.Timeouts.EntitySpawn, t.EntitySpawn)
		overlay(&cfg.Timeouts.Damage, t.Damage)
		overlay(&cfg.Timeouts.Scenario, t.Scenario)
	}
	if iv := s.Settle; iv != nil {
		overlay(&cfg.Settle.Spawn, iv.Spawn)
		overlay(&cfg.Settle.Clear, iv.Clear)
		overlay(&cfg.Settle.CommandAck, iv.CommandAck)
		overlay(&cfg.Settle.Effect, iv.Effect)
		overlay(&cfg.Settle.Setup, iv.Setup)
	}
	if r := s.Retry; r != nil {
		if r.MaxAttempts > 0 {
			cfg.Retry.MaxAttempts = r.MaxAttempts
		}
		overlay(&cfg.Retry.Delay, r.Delay)
	}
	return cfg
}

func overlay[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}
