package config

import (
	"flag"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost", cfg.RCON.Host)
	assert.Equal(t, 25575, cfg.RCON.Port)
	assert.Equal(t, "dragon123", cfg.RCON.Password)
	assert.Equal(t, 25565, cfg.Game.Port)
	assert.Equal(t, "TestPlayer", cfg.Player)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Connection)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Command)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Effect)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.EntitySpawn)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Damage)
	assert.Equal(t, uint(3), cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.Delay)
	assert.Equal(t, 100*time.Millisecond, cfg.Settle.Spawn)
	assert.Equal(t, 200*time.Millisecond, cfg.Settle.Clear)
	assert.True(t, cfg.Assertions)
	require.NoError(t, cfg.Validate())
}

func TestEnvironmentOverrides(t *testing.T) {
	cfg, err := Load(env.Options{Environment: map[string]string{
		"MC_HOST":            "mc.internal",
		"RCON_PORT":          "25600",
		"ED_SETTLE_SPAWN":    "250ms",
		"ED_RETRY_DELAY":     "2s",
		"ED_TIMEOUT_COMMAND": "4s",
	}})
	require.NoError(t, err)

	// The console falls back to the game host.
	assert.Equal(t, "mc.internal", cfg.RCON.Host)
	assert.Equal(t, 25600, cfg.RCON.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Settle.Spawn)
	assert.Equal(t, 2*time.Second, cfg.Retry.Delay)
	assert.Equal(t, 4*time.Second, cfg.Timeouts.Command)

	cfg, err = Load(env.Options{Environment: map[string]string{"RCON_HOST": "console", "MC_HOST": "game"}})
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.RCON.Host)
}

func TestBadEnvironment(t *testing.T) {
	_, err := Load(env.Options{Environment: map[string]string{"RCON_PORT": "not-a-port"}})
	assert.Error(t, err)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	cfg := Default()
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	BindFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"-rcon-port", "26000", "-player", "Alex", "-assert=false"}))

	assert.Equal(t, 26000, cfg.RCON.Port)
	assert.Equal(t, "Alex", cfg.Player)
	assert.False(t, cfg.Assertions)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.RCON.Port = 0
	cfg.Timeouts.Command = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rcon port")
	assert.Contains(t, err.Error(), "command timeout")
}

func TestSuiteApply(t *testing.T) {
	suite, err := ParseSuite([]byte(`
name: smoke
player: Steve
include: [server-seed, dragons-wrath-damage]
tags: [burning]
assert: false
timeouts:
  damage: 5s
settle:
  spawn: 150ms
retry:
  max_attempts: 5
`))
	require.NoError(t, err)
	assert.Equal(t, "smoke", suite.Name)
	assert.Equal(t, []string{"server-seed", "dragons-wrath-damage"}, suite.Include)

	cfg := suite.Apply(Default())
	assert.Equal(t, "Steve", cfg.Player)
	assert.False(t, cfg.Assertions)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Damage)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Command)
	assert.Equal(t, 150*time.Millisecond, cfg.Settle.Spawn)
	assert.Equal(t, 200*time.Millisecond, cfg.Settle.Clear)
	assert.Equal(t, uint(5), cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.Delay)
}

func TestSuiteRejectsBadYAML(t *testing.T) {
	_, err := ParseSuite([]byte("include: [unterminated"))
	assert.Error(t, err)
}
