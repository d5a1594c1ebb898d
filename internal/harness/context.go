// Package harness owns the lifecycle of one scenario's resources: the
// remote-console session, the optional simulated player, and everything
// that must be released when the scenario ends.
package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cavarest/elemental-dragon/internal/assert"
	"github.com/cavarest/elemental-dragon/internal/config"
	"github.com/cavarest/elemental-dragon/internal/entity"
	"github.com/cavarest/elemental-dragon/internal/log"
	ednet "github.com/cavarest/elemental-dragon/internal/net"
	"github.com/cavarest/elemental-dragon/internal/settle"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// State is where a context is in its lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateConnected
	StatePlayerAttached
	StateActive
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnected:
		return "connected"
	case StatePlayerAttached:
		return "player-attached"
	case StateActive:
		return "active"
	case StateTornDown:
		return "torn-down"
	}
	return "unknown"
}

// Console is the remote-console side of a context.
type Console interface {
	ednet.Commander
	Close() error
}

// Player is the simulated-player side of a context.
type Player interface {
	ednet.Commander
	Chat(ctx context.Context, line string) (ednet.CommandResult, error)
	Position(ctx context.Context) (world.Position, error)
	Telemetry(ctx context.Context) (ednet.Telemetry, error)
	Entities(ctx context.Context) ([]ednet.EntityView, error)
	Username() string
	Close() error
}

// Dialer opens the two transports.
type Dialer interface {
	DialConsole(ctx context.Context, cfg config.Config) (Console, error)
	DialPlayer(ctx context.Context, cfg config.Config, username string) (Player, error)
}

// Options tunes Create.
type Options struct {
	// Username attaches a simulated player when non-empty.
	Username string
	Logger   log.EventLogger
	Observer ednet.CommandObserver
	Asserts  assert.Observer
	Waiter   settle.Waiter
	Dialer   Dialer
	// ClearOnDestroy kills every non-player entity during teardown.
	ClearOnDestroy bool
}

// Context is the per-scenario aggregate handed to scenario code. It is only
// ever returned fully initialized.
type Context struct {
	Config     config.Config
	Console    Console
	Player     Player // nil unless a username was requested
	PlayerName string
	Entities   *entity.Controller
	Assert     *assert.Engine
	Wait       settle.Waiter
	Logger     log.EventLogger

	clearOnDestroy bool

	mu       sync.Mutex
	state    State
	cleanups []func(ctx context.Context) error
}

// Create connects the console, then attaches the player if one was asked
// for. On any failure everything already opened is closed and no context
// is returned.
func Create(ctx context.Context, cfg config.Config, opts Options) (*Context, error) {
	logger := log.OrNop(opts.Logger)
	dialer := opts.Dialer
	if dialer == nil {
		dialer = NetDialer{Logger: logger, Observer: opts.Observer}
	}

	console, err := dialer.DialConsole(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect console: %w", err)
	}
	c := &Context{
		Config:         cfg,
		Console:        console,
		PlayerName:     cfg.Player,
		Logger:         logger,
		clearOnDestroy: opts.ClearOnDestroy,
		state:          StateConnected,
	}

	if opts.Username != "" {
		player, err := dialer.DialPlayer(ctx, cfg, opts.Username)
		if err != nil {
			if cerr := console.Close(); cerr != nil {
				logger.Log(log.NewTeardownErrorEvent("console close", cerr))
			}
			return nil, fmt.Errorf("attach player %s: %w", opts.Username, err)
		}
		c.Player = player
		c.PlayerName = player.Username()
		c.state = StatePlayerAttached
	}

	c.Wait = opts.Waiter
	if c.Wait == nil {
		c.Wait = settle.NewSleeper(cfg.Settle, logger)
	}
	c.Entities = entity.NewController(console, c.Wait, logger)

	mode := assert.Strict
	if !cfg.Assertions {
		mode = assert.LogOnly
	}
	c.Assert = assert.New(console, assert.WithMode(mode), assert.WithLogger(logger), assert.WithObserver(opts.Asserts))
	c.state = StateActive

	logger.Log(log.NewContextCreateEvent(playerName(c.Player)))
	return c, nil
}

func playerName(p Player) string {
	if p == nil {
		return ""
	}
	return p.Username()
}

// AttachedPlayer returns the username of the attached player, or "" for a
// console-only context. PlayerName is the configured default, not proof
// that anyone is online.
func (c *Context) AttachedPlayer() string {
	if c == nil {
		return ""
	}
	return playerName(c.Player)
}

// State reports the lifecycle state.
func (c *Context) State() State {
	if c == nil {
		return StateUninitialized
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Defer registers a cleanup run during Destroy, last registered first.
func (c *Context) Defer(fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups = append(c.cleanups, fn)
}

// Spawn spawns an entity and registers its removal for teardown.
func (c *Context) Spawn(ctx context.Context, kind string, pos world.Position, tag string, health float64) (entity.TrackedEntity, error) {
	e, err := c.Entities.Spawn(ctx, kind, pos, tag, health)
	if err != nil {
		return e, err
	}
	c.Defer(func(ctx context.Context) error { return c.Entities.Remove(ctx, e.Tag) })
	return e, nil
}

// Send issues a command on the console.
func (c *Context) Send(ctx context.Context, command string) (ednet.CommandResult, error) {
	return c.Console.Send(ctx, command)
}

// RequirePlayer returns the attached player or an error.
func (c *Context) RequirePlayer() (Player, error) {
	if c.Player == nil {
		return nil, errors.New("scenario needs a simulated player but none is attached")
	}
	return c.Player, nil
}

// Destroy releases everything the context holds. Each step is attempted
// even if an earlier one fails; step errors are logged and joined. A nil
// or already destroyed context is a no-op.
func (c *Context) Destroy(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	if c.state == StateTornDown || c.state == StateUninitialized {
		c.mu.Unlock()
		return nil
	}
	c.state = StateTornDown
	cleanups := c.cleanups
	c.cleanups = nil
	c.mu.Unlock()

	logger := log.OrNop(c.Logger)
	var errs []error
	step := func(name string, err error) {
		if err == nil {
			return
		}
		logger.Log(log.NewTeardownErrorEvent(name, err))
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}

	for i := len(cleanups) - 1; i >= 0; i-- {
		step("cleanup", cleanups[i](ctx))
	}
	if c.clearOnDestroy && c.Entities != nil {
		step("clear entities", c.Entities.ClearAll(ctx))
	}
	if c.Player != nil {
		step("player close", c.Player.Close())
	}
	if c.Console != nil {
		step("console close", c.Console.Close())
	}

	logger.Log(log.NewContextDestroyEvent())
	return errors.Join(errs...)
}

// Destroy is the nil-safe form of (*Context).Destroy.
func Destroy(ctx context.Context, c *Context) error {
	return c.Destroy(ctx)
}

// TeardownError reports that fn succeeded but releasing the context did
// not. The individual steps were already logged by Destroy.
type TeardownError struct {
	Err error
}

func (e *TeardownError) Error() string { return "teardown: " + e.Err.Error() }
func (e *TeardownError) Unwrap() error { return e.Err }

// IsTeardown reports whether err is only a teardown failure.
func IsTeardown(err error) bool {
	var td *TeardownError
	return errors.As(err, &td)
}

// With creates a context, runs fn, and destroys the context on every exit
// path. fn's error always wins; a teardown error is returned, as a
// *TeardownError, only when fn succeeded.
func With(ctx context.Context, cfg config.Config, opts Options, fn func(ctx context.Context, c *Context) error) (err error) {
	c, err := Create(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if derr := c.Destroy(context.WithoutCancel(ctx)); derr != nil && err == nil {
			err = &TeardownError{Err: derr}
		}
	}()
	return fn(ctx, c)
}
