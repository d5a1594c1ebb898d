// Package entity creates, finds and removes the test entities a scenario
// works with. The server gives no notice that an entity has become
// queryable beyond accepting the command, so every mutation here is
// followed by a named settle interval.
package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cavarest/elemental-dragon/internal/log"
	ednet "github.com/cavarest/elemental-dragon/internal/net"
	"github.com/cavarest/elemental-dragon/internal/parse"
	"github.com/cavarest/elemental-dragon/internal/settle"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// TrackedEntity is a server-side entity known by its unique tag. Health and
// Position are the last values read from the server.
type TrackedEntity struct {
	Kind     string
	Tag      string
	Health   float64
	Position world.Position
}

// Controller issues entity commands through a Commander.
type Controller struct {
	cmd    ednet.Commander
	wait   settle.Waiter
	logger log.EventLogger
}

// NewController creates a controller. A nil logger discards events.
func NewController(cmd ednet.Commander, wait settle.Waiter, logger log.EventLogger) *Controller {
	return &Controller{cmd: cmd, wait: wait, logger: log.OrNop(logger)}
}

// UniqueTag returns prefix followed by a short random suffix.
func UniqueTag(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if prefix == "" {
		return "ed_" + id
	}
	return prefix + "_" + id
}

// Selector is the entity selector matching exactly one entity with tag.
func Selector(tag string) string {
	return fmt.Sprintf("@e[tag=%s,limit=1]", tag)
}

// SpawnCommand builds the summon command for a frozen, tagged entity.
func SpawnCommand(kind string, pos world.Position, tag string, health float64) string {
	return fmt.Sprintf("summon %s %s {%s,Tags:[%q],Health:%sf}",
		kind, pos.Command(), world.FrozenNBT, tag, world.FormatNumber(health))
}

// Spawn summons a frozen entity carrying tag and waits for it to settle.
func (c *Controller) Spawn(ctx context.Context, kind string, pos world.Position, tag string, health float64) (TrackedEntity, error) {
	command := SpawnCommand(kind, pos, tag, health)
	res, err := c.cmd.Send(ctx, command)
	if err != nil {
		return TrackedEntity{}, fmt.Errorf("spawn %s [%s]: %w", kind, tag, err)
	}
	if parse.Rejected(res.Raw) {
		return TrackedEntity{}, &parse.RejectedError{Command: command, Text: res.Raw}
	}
	if err := c.wait.Settle(ctx, settle.Spawn); err != nil {
		return TrackedEntity{}, err
	}
	c.logger.Log(log.NewSpawnEvent(kind, tag, pos, health))
	return TrackedEntity{Kind: kind, Tag: tag, Health: health, Position: pos}, nil
}

// Locate reads the position of the entity carrying tag.
func (c *Controller) Locate(ctx context.Context, tag string) (world.Position, error) {
	raw, err := c.query(ctx, tag, "Pos")
	if err != nil {
		return world.Position{}, err
	}
	return parse.Position(raw)
}

// Health reads the current health of the entity carrying tag.
func (c *Controller) Health(ctx context.Context, tag string) (float64, error) {
	raw, err := c.query(ctx, tag, "Health")
	if err != nil {
		return 0, err
	}
	return parse.EntityData(raw)
}

func (c *Controller) query(ctx context.Context, tag, path string) (string, error) {
	sel := Selector(tag)
	res, err := c.cmd.Send(ctx, fmt.Sprintf("data get entity %s %s", sel, path))
	if err != nil {
		return "", err
	}
	if parse.NotFound(res.Raw) {
		return "", &parse.NotFoundError{Selector: sel, Text: res.Raw}
	}
	return res.Raw, nil
}

// Remove kills every entity carrying tag.
func (c *Controller) Remove(ctx context.Context, tag string) error {
	if _, err := c.cmd.Send(ctx, fmt.Sprintf("kill @e[tag=%s]", tag)); err != nil {
		return fmt.Errorf("remove [%s]: %w", tag, err)
	}
	c.logger.Log(log.NewRemoveEvent(tag))
	return c.wait.Settle(ctx, settle.Spawn)
}

// ClearAll kills every non-player entity and waits for the world to settle.
func (c *Controller) ClearAll(ctx context.Context) error {
	if _, err := c.cmd.Send(ctx, "kill @e[type=!player]"); err != nil {
		return fmt.Errorf("clear all: %w", err)
	}
	c.logger.Log(log.NewClearEvent())
	return c.wait.Settle(ctx, settle.Clear)
}

// RingSpawn places four entities at the cardinal points radius blocks from
// the spawn origin. Tags are prefix_east, prefix_west, prefix_south and
// prefix_north, returned in that order.
func (c *Controller) RingSpawn(ctx context.Context, radius float64, kind, tagPrefix string, health float64) ([]TrackedEntity, error) {
	return c.RingSpawnAround(ctx, world.Origin, radius, kind, tagPrefix, health)
}

// RingSpawnAround is RingSpawn about an arbitrary centre.
func (c *Controller) RingSpawnAround(ctx context.Context, center world.Position, radius float64, kind, tagPrefix string, health float64) ([]TrackedEntity, error) {
	out := make([]TrackedEntity, 0, len(world.Cardinals))
	for _, d := range world.Cardinals {
		pos := center.Add(d.Offset(radius))
		pos.Y = world.GroundY
		e, err := c.Spawn(ctx, kind, pos, tagPrefix+"_"+string(d), health)
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Teleport moves player to pos facing yaw/pitch.
func (c *Controller) Teleport(ctx context.Context, player string, pos world.Position, yaw, pitch float64) error {
	return c.ack(ctx, fmt.Sprintf("tp %s %s %s %s", player, pos.Command(), world.FormatNumber(yaw), world.FormatNumber(pitch)))
}

// Give puts count of item into player's inventory.
func (c *Controller) Give(ctx context.Context, player, item string, count int) error {
	return c.ack(ctx, fmt.Sprintf("give %s %s %d", player, item, count))
}

// ExecuteAs runs command with player as the executor and returns the reply.
func (c *Controller) ExecuteAs(ctx context.Context, player, command string) (ednet.CommandResult, error) {
	res, err := c.cmd.Send(ctx, fmt.Sprintf("execute as %s run %s", player, strings.TrimPrefix(command, "/")))
	if err != nil {
		return res, err
	}
	return res, c.wait.Settle(ctx, settle.CommandAck)
}

// ClearInventory empties player's inventory and reports how many items
// were removed.
func (c *Controller) ClearInventory(ctx context.Context, player string) (int, error) {
	res, err := c.cmd.Send(ctx, "clear "+player)
	if err != nil {
		return 0, err
	}
	if parse.NotFound(res.Raw) {
		return 0, &parse.NotFoundError{Selector: player, Text: res.Raw}
	}
	return parse.Count(res.Raw)
}

// ClearEffects removes every status effect from player.
func (c *Controller) ClearEffects(ctx context.Context, player string) error {
	return c.ack(ctx, "effect clear "+player)
}

func (c *Controller) ack(ctx context.Context, command string) error {
	res, err := c.cmd.Send(ctx, command)
	if err != nil {
		return err
	}
	if parse.Rejected(res.Raw) {
		return &parse.RejectedError{Command: command, Text: res.Raw}
	}
	if parse.NotFound(res.Raw) {
		return &parse.NotFoundError{Selector: command, Text: res.Raw}
	}
	return c.wait.Settle(ctx, settle.CommandAck)
}
