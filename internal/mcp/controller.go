package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cavarest/elemental-dragon/internal/config"
	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/log"
	"github.com/cavarest/elemental-dragon/internal/scenario"
	"github.com/cavarest/elemental-dragon/internal/settle"
)

var (
	errNoSession     = errors.New("no harness context is open; use connect first")
	errSessionActive = errors.New("a harness context is already open; only one at a time is supported")
)

// Controller owns the single active session and everything the tools need
// to open one or run a scenario. Tool calls are serialized.
type Controller struct {
	Config   config.Config
	Dialer   harness.Dialer // nil dials the configured server
	Waiter   settle.Waiter  // nil sleeps the configured intervals
	Registry *scenario.Registry
	Recorder scenario.Recorder
	Journal  scenario.Journal
	// Logger receives every event in addition to the tool responses.
	Logger log.EventLogger

	mu     sync.Mutex
	active *Session
}

// NewController returns a controller over cfg and the scenarios in reg.
func NewController(cfg config.Config, reg *scenario.Registry) *Controller {
	return &Controller{Config: cfg, Registry: reg}
}

func (c *Controller) connect(ctx context.Context, username string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return nil, errSessionActive
	}
	sess, err := NewSession(ctx, c.Config, c.Dialer, c.Waiter, c.Logger, username)
	if err != nil {
		return nil, err
	}
	c.active = sess
	return sess, nil
}

func (c *Controller) session() (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil, errNoSession
	}
	return c.active, nil
}

// Disconnect closes the active session, if any.
func (c *Controller) Disconnect(ctx context.Context) ([]EventView, error) {
	c.mu.Lock()
	sess := c.active
	c.active = nil
	c.mu.Unlock()
	if sess == nil {
		return nil, errNoSession
	}
	err := sess.Close(ctx)
	return sess.drainEvents(), err
}

// runScenario runs one registered scenario in its own context. It refuses
// while an interactive session is open so two contexts never share the
// server.
func (c *Controller) runScenario(ctx context.Context, name string) (scenario.Summary, []EventView, error) {
	if c.Registry == nil {
		return scenario.Summary{}, nil, errors.New("no scenarios registered")
	}
	s, ok := c.Registry.Lookup(name)
	if !ok {
		return scenario.Summary{}, nil, fmt.Errorf("unknown scenario %q", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return scenario.Summary{}, nil, errSessionActive
	}

	events := log.NewMemoryLogger()
	logger := log.EventLogger(events)
	if c.Logger != nil {
		logger = log.Multi(events, c.Logger)
	}
	r := &scenario.Runner{
		Config:   c.Config,
		Dialer:   c.Dialer,
		Logger:   logger,
		Waiter:   c.Waiter,
		Recorder: c.Recorder,
		Journal:  c.Journal,
	}
	sum, err := r.Run(ctx, []scenario.Scenario{s})
	return sum, eventViews(events.Events()), err
}
