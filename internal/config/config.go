// Package config assembles the one configuration value the harness runs
// with. Only Load reads the process environment; every component receives
// the values it needs explicitly.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/cavarest/elemental-dragon/internal/retry"
	"github.com/cavarest/elemental-dragon/internal/settle"
)

// RCON is the remote-console endpoint.
type RCON struct {
	Host     string `env:"RCON_HOST"`
	Port     int    `env:"RCON_PORT"     envDefault:"25575"`
	Password string `env:"RCON_PASSWORD" envDefault:"dragon123"`
}

// Game is the endpoint the simulated player joins.
type Game struct {
	Host string `env:"MC_HOST" envDefault:"localhost"`
	Port int    `env:"MC_PORT" envDefault:"25565"`
	Auth string `env:"MC_AUTH" envDefault:"offline"`
}

// Bridge is the player bridge process.
type Bridge struct {
	URL        string        `env:"ED_BRIDGE_URL"         envDefault:"ws://localhost:25580/bridge"`
	ChatWindow time.Duration `env:"ED_BRIDGE_CHAT_WINDOW" envDefault:"500ms"`
}

// Timeouts bounds each kind of wait.
type Timeouts struct {
	Connection  time.Duration `env:"ED_TIMEOUT_CONNECTION"   envDefault:"30s" yaml:"connection"`
	Command     time.Duration `env:"ED_TIMEOUT_COMMAND"      envDefault:"10s" yaml:"command"`
	Effect      time.Duration `env:"ED_TIMEOUT_EFFECT"       envDefault:"5s"  yaml:"effect"`
	EntitySpawn time.Duration `env:"ED_TIMEOUT_ENTITY_SPAWN" envDefault:"2s"  yaml:"entity_spawn"`
	Damage      time.Duration `env:"ED_TIMEOUT_DAMAGE"       envDefault:"3s"  yaml:"damage"`
	Scenario    time.Duration `env:"ED_TIMEOUT_SCENARIO"     envDefault:"2m"  yaml:"scenario"`
}

// Config holds everything a run needs.
type Config struct {
	RCON     RCON
	Game     Game
	Bridge   Bridge
	Player   string `env:"ED_PLAYER" envDefault:"TestPlayer"`
	Timeouts Timeouts
	Settle   settle.Intervals
	Retry    retry.Policy

	Assertions bool   `env:"ED_ASSERT"  envDefault:"true"`
	Verbose    bool   `env:"ED_VERBOSE"`
	Suite      string `env:"ED_SUITE"`
	Journal    string `env:"ED_JOURNAL" envDefault:"edtest.db"`
	JUnit      string `env:"ED_JUNIT"`

	MetricsAddr  string `env:"ED_METRICS_ADDR"`
	OTelEndpoint string `env:"ED_OTEL_ENDPOINT"`
}

// Load reads configuration from the environment. Pass env.Options with an
// Environment map to load from something other than the process.
func Load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.RCON.Host == "" {
		cfg.RCON.Host = cfg.Game.Host
	}
	return cfg, nil
}

// Default is the configuration with no environment at all.
func Default() Config {
	cfg, err := Load(env.Options{Environment: map[string]string{}})
	if err != nil {
		panic(err)
	}
	return cfg
}

// BindFlags registers flags that override cfg's current values.
func BindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.RCON.Host, "rcon-host", cfg.RCON.Host, "remote console host")
	fs.IntVar(&cfg.RCON.Port, "rcon-port", cfg.RCON.Port, "remote console port")
	fs.StringVar(&cfg.RCON.Password, "rcon-password", cfg.RCON.Password, "remote console password")
	fs.StringVar(&cfg.Game.Host, "mc-host", cfg.Game.Host, "game host the player joins")
	fs.IntVar(&cfg.Game.Port, "mc-port", cfg.Game.Port, "game port the player joins")
	fs.StringVar(&cfg.Bridge.URL, "bridge", cfg.Bridge.URL, "player bridge websocket URL")
	fs.StringVar(&cfg.Player, "player", cfg.Player, "test player name")
	fs.BoolVar(&cfg.Assertions, "assert", cfg.Assertions, "enable assertions (disable to log failures only)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	fs.DurationVar(&cfg.Timeouts.Command, "timeout", cfg.Timeouts.Command, "timeout per command")
	fs.DurationVar(&cfg.Timeouts.Scenario, "scenario-timeout", cfg.Timeouts.Scenario, "timeout per scenario")
	fs.StringVar(&cfg.Suite, "suite", cfg.Suite, "path to suite YAML file")
	fs.StringVar(&cfg.Journal, "journal", cfg.Journal, "path to run journal (empty disables)")
	fs.StringVar(&cfg.JUnit, "junit", cfg.JUnit, "write a JUnit XML report to this path")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve status and metrics on this address")
}

// ParseConfig loads the environment, then applies flags from args.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg, err := Load(env.Options{})
	if err != nil {
		return Config{}, err
	}
	BindFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot possibly connect.
func (c Config) Validate() error {
	var errs []error
	if c.RCON.Host == "" {
		errs = append(errs, errors.New("rcon host is required"))
	}
	if c.RCON.Port <= 0 || c.RCON.Port > 65535 {
		errs = append(errs, fmt.Errorf("rcon port %d out of range", c.RCON.Port))
	}
	if c.Game.Port <= 0 || c.Game.Port > 65535 {
		errs = append(errs, fmt.Errorf("game port %d out of range", c.Game.Port))
	}
	for name, d := range map[string]time.Duration{
		"connection": c.Timeouts.Connection,
		"command":    c.Timeouts.Command,
		"scenario":   c.Timeouts.Scenario,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s timeout must be positive", name))
		}
	}
	if c.Retry.MaxAttempts == 0 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	return errors.Join(errs...)
}
