package harness

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorcon/rcon"
	"github.com/gorcon/rcon/rcontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cavarest/elemental-dragon/internal/config"
	"github.com/cavarest/elemental-dragon/internal/log"
	ednet "github.com/cavarest/elemental-dragon/internal/net"
	"github.com/cavarest/elemental-dragon/internal/net/bridgetest"
	"github.com/cavarest/elemental-dragon/internal/settle"
	"github.com/cavarest/elemental-dragon/internal/testkit"
	"github.com/cavarest/elemental-dragon/internal/world"
)

type fakeConsole struct {
	*testkit.World
	closes   int
	closeErr error
}

func (f *fakeConsole) Close() error {
	f.closes++
	return f.closeErr
}

type fakePlayer struct {
	name     string
	closes   int
	closeErr error
}

func (p *fakePlayer) Backend() string { return ednet.BackendPlayer }
func (p *fakePlayer) Send(ctx context.Context, cmd string) (ednet.CommandResult, error) {
	return ednet.CommandResult{Command: cmd}, nil
}
func (p *fakePlayer) Chat(ctx context.Context, line string) (ednet.CommandResult, error) {
	return ednet.CommandResult{Command: line}, nil
}
func (p *fakePlayer) Position(ctx context.Context) (world.Position, error) { return world.Origin, nil }
func (p *fakePlayer) Telemetry(ctx context.Context) (ednet.Telemetry, error) {
	return ednet.Telemetry{Position: world.Origin, Health: 20}, nil
}
func (p *fakePlayer) Entities(ctx context.Context) ([]ednet.EntityView, error) { return nil, nil }
func (p *fakePlayer) Username() string                                         { return p.name }
func (p *fakePlayer) Close() error {
	p.closes++
	return p.closeErr
}

type fakeDialer struct {
	console    *fakeConsole
	player     *fakePlayer
	consoleErr error
	playerErr  error
}

func (d *fakeDialer) DialConsole(ctx context.Context, cfg config.Config) (Console, error) {
	if d.consoleErr != nil {
		return nil, d.consoleErr
	}
	return d.console, nil
}

func (d *fakeDialer) DialPlayer(ctx context.Context, cfg config.Config, username string) (Player, error) {
	if d.playerErr != nil {
		return nil, d.playerErr
	}
	d.player.name = username
	return d.player, nil
}

func newFakes() *fakeDialer {
	return &fakeDialer{
		console: &fakeConsole{World: testkit.NewWorld("TestPlayer")},
		player:  &fakePlayer{},
	}
}

func TestCreateConsoleOnly(t *testing.T) {
	d := newFakes()
	c, err := Create(context.Background(), config.Default(), Options{Dialer: d, Waiter: &settle.Recorder{}})
	require.NoError(t, err)

	assert.Equal(t, StateActive, c.State())
	assert.Nil(t, c.Player)
	assert.Equal(t, "TestPlayer", c.PlayerName)
	assert.Empty(t, c.AttachedPlayer())
	_, err = c.RequirePlayer()
	assert.Error(t, err)

	require.NoError(t, c.Destroy(context.Background()))
	assert.Equal(t, StateTornDown, c.State())
	assert.Equal(t, 1, d.console.closes)
}

func TestCreateWithPlayer(t *testing.T) {
	d := newFakes()
	c, err := Create(context.Background(), config.Default(), Options{Dialer: d, Username: "Alex", Waiter: &settle.Recorder{}})
	require.NoError(t, err)
	assert.Equal(t, "Alex", c.PlayerName)
	assert.Equal(t, "Alex", c.AttachedPlayer())

	require.NoError(t, c.Destroy(context.Background()))
	assert.Equal(t, 1, d.player.closes)
	assert.Equal(t, 1, d.console.closes)
}

func TestCreateConsoleFailureReturnsNothing(t *testing.T) {
	d := newFakes()
	d.consoleErr = &ednet.ConnectionError{Backend: "rcon", Op: "dial", Err: errors.New("refused")}

	c, err := Create(context.Background(), config.Default(), Options{Dialer: d})
	assert.Nil(t, c)
	assert.True(t, ednet.IsConnection(err))

	// Destroying the missing context is safe.
	assert.NoError(t, Destroy(context.Background(), c))
	assert.Equal(t, StateUninitialized, c.State())
}

func TestCreatePlayerFailureClosesConsole(t *testing.T) {
	d := newFakes()
	d.playerErr = errors.New("bridge unreachable")

	c, err := Create(context.Background(), config.Default(), Options{Dialer: d, Username: "TestPlayer"})
	assert.Nil(t, c)
	assert.ErrorContains(t, err, "bridge unreachable")
	assert.Equal(t, 1, d.console.closes)
}

func TestDestroyIsIdempotentAndAttemptsEverything(t *testing.T) {
	d := newFakes()
	d.player.closeErr = errors.New("player gone")
	d.console.closeErr = errors.New("console gone")
	logger := log.NewMemoryLogger()

	c, err := Create(context.Background(), config.Default(), Options{Dialer: d, Username: "TestPlayer", Logger: logger, Waiter: &settle.Recorder{}})
	require.NoError(t, err)

	err = c.Destroy(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "player gone")
	assert.ErrorContains(t, err, "console gone")
	assert.Equal(t, 1, d.player.closes)
	assert.Equal(t, 1, d.console.closes)
	assert.Len(t, logger.EventsOfType(log.EventTeardownError), 2)

	require.NoError(t, c.Destroy(context.Background()))
	assert.Equal(t, 1, d.console.closes)
}

func TestDestroyRemovesSpawnedEntities(t *testing.T) {
	d := newFakes()
	c, err := Create(context.Background(), config.Default(), Options{Dialer: d, Waiter: &settle.Recorder{}})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Spawn(ctx, "zombie", world.North, "a", 20)
	require.NoError(t, err)
	_, err = c.Spawn(ctx, "zombie", world.South, "b", 20)
	require.NoError(t, err)
	require.Equal(t, 2, d.console.Count())

	require.NoError(t, c.Destroy(ctx))
	assert.Equal(t, 0, d.console.Count())

	cmds := d.console.Commands()
	assert.Equal(t, "kill @e[tag=b]", cmds[len(cmds)-2])
	assert.Equal(t, "kill @e[tag=a]", cmds[len(cmds)-1])
}

func TestWithReleasesOnFailure(t *testing.T) {
	d := newFakes()
	scenarioErr := errors.New("assertion failed")
	d.console.closeErr = errors.New("teardown noise")

	err := With(context.Background(), config.Default(), Options{Dialer: d, Waiter: &settle.Recorder{}, ClearOnDestroy: true},
		func(ctx context.Context, c *Context) error {
			_, err := c.Spawn(ctx, "zombie", world.North, "x", 20)
			require.NoError(t, err)
			return scenarioErr
		})

	// The scenario's own error wins over teardown errors.
	assert.ErrorIs(t, err, scenarioErr)
	assert.Equal(t, 1, d.console.closes)
	assert.Equal(t, 0, d.console.Count())
}

func TestWithReportsTeardownSeparately(t *testing.T) {
	d := newFakes()
	d.console.closeErr = errors.New("console gone")

	err := With(context.Background(), config.Default(), Options{Dialer: d, Waiter: &settle.Recorder{}},
		func(ctx context.Context, c *Context) error { return nil })

	require.Error(t, err)
	assert.True(t, IsTeardown(err))
	assert.ErrorContains(t, err, "console gone")
	assert.False(t, IsTeardown(errors.New("console gone")))

	// A scenario error is never dressed up as a teardown error.
	err = With(context.Background(), config.Default(), Options{Dialer: d, Waiter: &settle.Recorder{}},
		func(ctx context.Context, c *Context) error { return errors.New("real failure") })
	assert.False(t, IsTeardown(err))
}

func TestCreateOverRealTransports(t *testing.T) {
	srv := rcontest.NewServer(
		rcontest.SetSettings(rcontest.Settings{Password: "dragon123"}),
		rcontest.SetCommandHandler(func(c *rcontest.Context) {
			_, _ = rcon.NewPacket(rcon.SERVERDATA_RESPONSE_VALUE, c.Request().ID, "Seed: [42]").WriteTo(c.Conn())
		}),
	)
	defer srv.Close()
	bridge := bridgetest.New()
	defer bridge.Close()

	host, portStr, _ := strings.Cut(srv.Addr(), ":")
	port, _ := strconv.Atoi(portStr)
	cfg := config.Default()
	cfg.RCON.Host, cfg.RCON.Port = host, port
	cfg.Bridge.URL = bridge.URL()
	cfg.Timeouts.Connection = 2 * time.Second
	cfg.Timeouts.Command = time.Second

	c, err := Create(context.Background(), cfg, Options{Username: "TestPlayer"})
	require.NoError(t, err)

	res, err := c.Send(context.Background(), "seed")
	require.NoError(t, err)
	assert.Equal(t, "Seed: [42]", res.Raw)

	pos, err := c.Player.Position(context.Background())
	require.NoError(t, err)
	assert.Equal(t, world.Origin, pos)

	require.NoError(t, c.Destroy(context.Background()))
}
