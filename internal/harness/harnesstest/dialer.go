// Package harnesstest provides a harness.Dialer whose console and player are
// backed by a testkit.World.
package harnesstest

import (
	"context"
	"strings"
	"sync"

	"github.com/cavarest/elemental-dragon/internal/config"
	"github.com/cavarest/elemental-dragon/internal/harness"
	ednet "github.com/cavarest/elemental-dragon/internal/net"
	"github.com/cavarest/elemental-dragon/internal/testkit"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// Console is a console session on the shared world.
type Console struct {
	*testkit.World
	d *Dialer
}

func (c *Console) Backend() string { return ednet.BackendRCON }

func (c *Console) Close() error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.consoleCloses++
	return c.d.CloseErr
}

// Player is a simulated player on the shared world. Slash commands run as
// the player through the console interpreter.
type Player struct {
	w    *testkit.World
	d    *Dialer
	name string
}

func (p *Player) Backend() string  { return ednet.BackendPlayer }
func (p *Player) Username() string { return p.name }

func (p *Player) Send(ctx context.Context, command string) (ednet.CommandResult, error) {
	command = strings.TrimPrefix(strings.TrimSpace(command), "/")
	res, err := p.w.Send(ctx, "execute as "+p.name+" run "+command)
	res.Command = command
	res.Backend = ednet.BackendPlayer
	return res, err
}

func (p *Player) Chat(ctx context.Context, line string) (ednet.CommandResult, error) {
	p.d.mu.Lock()
	p.d.said = append(p.d.said, line)
	p.d.mu.Unlock()
	if strings.HasPrefix(line, "/") {
		return p.Send(ctx, line)
	}
	return ednet.CommandResult{Command: line, Backend: ednet.BackendPlayer}, nil
}

func (p *Player) Position(ctx context.Context) (world.Position, error) {
	t, err := p.Telemetry(ctx)
	return t.Position, err
}

func (p *Player) Telemetry(ctx context.Context) (ednet.Telemetry, error) {
	var t ednet.Telemetry
	var found bool
	p.w.Update(func(w *testkit.World) {
		if pl, ok := w.Players()[p.name]; ok {
			t = ednet.Telemetry{Position: pl.Position, Health: pl.Health}
			found = true
		}
	})
	if !found {
		return t, &ednet.BridgeError{Request: "telemetry", Message: p.name + " is offline"}
	}
	return t, nil
}

func (p *Player) Entities(ctx context.Context) ([]ednet.EntityView, error) {
	var out []ednet.EntityView
	for i, e := range p.w.Snapshot() {
		out = append(out, ednet.EntityView{ID: i + 1, Name: e.Kind, Type: "minecraft:" + e.Kind, Position: e.Position})
	}
	return out, nil
}

func (p *Player) Close() error {
	p.d.mu.Lock()
	p.d.playerCloses++
	p.d.mu.Unlock()
	p.w.Leave(p.name)
	return nil
}

// Dialer hands out sessions on one world. Each dial returns a fresh
// session so a runner can create and destroy contexts repeatedly.
type Dialer struct {
	World *testkit.World

	// ConsoleErr and PlayerErr fail the respective dial.
	ConsoleErr error
	PlayerErr  error
	// CloseErr is returned from every console Close.
	CloseErr error

	mu            sync.Mutex
	consoleDials  int
	consoleCloses int
	playerCloses  int
	said          []string
}

var _ harness.Dialer = (*Dialer)(nil)

// New returns a dialer over w.
func New(w *testkit.World) *Dialer {
	return &Dialer{World: w}
}

func (d *Dialer) DialConsole(ctx context.Context, cfg config.Config) (harness.Console, error) {
	if d.ConsoleErr != nil {
		return nil, d.ConsoleErr
	}
	d.mu.Lock()
	d.consoleDials++
	d.mu.Unlock()
	return &Console{World: d.World, d: d}, nil
}

func (d *Dialer) DialPlayer(ctx context.Context, cfg config.Config, username string) (harness.Player, error) {
	if d.PlayerErr != nil {
		return nil, d.PlayerErr
	}
	d.World.Join(username)
	return &Player{w: d.World, d: d, name: username}, nil
}

// Balanced reports whether every console dialed so far was closed.
func (d *Dialer) Balanced() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.consoleDials == d.consoleCloses
}

// ConsoleDials returns how many consoles were opened.
func (d *Dialer) ConsoleDials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.consoleDials
}

// PlayerCloses returns how many player sessions were closed.
func (d *Dialer) PlayerCloses() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playerCloses
}

// Said returns every chat line players sent.
func (d *Dialer) Said() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.said...)
}
