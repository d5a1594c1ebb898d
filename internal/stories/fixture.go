package stories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cavarest/elemental-dragon/internal/assert"
	"github.com/cavarest/elemental-dragon/internal/entity"
	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/log"
	ednet "github.com/cavarest/elemental-dragon/internal/net"
	"github.com/cavarest/elemental-dragon/internal/parse"
	"github.com/cavarest/elemental-dragon/internal/retry"
	"github.com/cavarest/elemental-dragon/internal/settle"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// yawNorth faces the player down the negative Z axis.
const yawNorth = 180.0

const pollDelay = 250 * time.Millisecond

// fixture is a prepared player at the origin with nothing around it.
type fixture struct {
	h    *harness.Context
	p    harness.Player
	name string
}

// setup clears the area and resets the player: healed, at the origin facing
// north, no effects, empty inventory.
func setup(ctx context.Context, h *harness.Context) (*fixture, error) {
	p, err := h.RequirePlayer()
	if err != nil {
		return nil, err
	}
	f := &fixture{h: h, p: p, name: p.Username()}

	if err := h.Entities.ClearAll(ctx); err != nil {
		return nil, err
	}
	if err := h.Entities.Teleport(ctx, f.name, world.Origin, yawNorth, 0); err != nil {
		return nil, fmt.Errorf("teleport %s: %w", f.name, err)
	}
	if err := f.send(ctx, fmt.Sprintf("effect give %s minecraft:instant_health 1 10", f.name)); err != nil {
		return nil, err
	}
	if err := h.Entities.ClearEffects(ctx, f.name); err != nil {
		return nil, err
	}
	if _, err := h.Entities.ClearInventory(ctx, f.name); err != nil {
		return nil, err
	}
	return f, h.Wait.Settle(ctx, settle.Setup)
}

// send issues a console command that must be accepted.
func (f *fixture) send(ctx context.Context, command string) error {
	res, err := f.h.Send(ctx, command)
	if err != nil {
		return err
	}
	if parse.Rejected(res.Raw) {
		return &parse.RejectedError{Command: command, Text: res.Raw}
	}
	return f.h.Wait.Settle(ctx, settle.CommandAck)
}

// chat sends a line as the player and returns whatever it received back.
func (f *fixture) chat(ctx context.Context, line string) (string, error) {
	res, err := f.p.Chat(ctx, line)
	if err != nil {
		return "", err
	}
	if parse.Rejected(res.Raw) {
		return res.Raw, &parse.RejectedError{Command: line, Text: res.Raw}
	}
	return res.Raw, f.h.Wait.Settle(ctx, settle.CommandAck)
}

// equip hands the player frag's item and equips it.
func (f *fixture) equip(ctx context.Context, frag world.Fragment) error {
	if err := f.h.Entities.Give(ctx, f.name, frag.Item(), 1); err != nil {
		return err
	}
	reply, err := f.chat(ctx, "/"+string(frag)+" equip")
	if err != nil {
		return err
	}
	return f.h.Assert.True(strings.Contains(reply, world.ReplyEquipped), "equip",
		fmt.Sprintf("/%s equip to confirm, got %q", frag, reply))
}

// use triggers ability n of frag.
func (f *fixture) use(ctx context.Context, frag world.Fragment, n int) (string, error) {
	return f.chat(ctx, fmt.Sprintf("/%s %d", frag, n))
}

// execAs runs command as the player from the console.
func (f *fixture) execAs(ctx context.Context, command string) error {
	res, err := f.h.Entities.ExecuteAs(ctx, f.name, command)
	if err != nil {
		return err
	}
	if parse.Rejected(res.Raw) {
		return &parse.RejectedError{Command: command, Text: res.Raw}
	}
	return nil
}

func (f *fixture) effectPolicy() retry.Policy {
	return retry.Window(f.h.Config.Timeouts.Effect, pollDelay)
}

// expectEffect polls until the player shows effect.
func (f *fixture) expectEffect(ctx context.Context, effect string) error {
	return f.h.Assert.Eventually(ctx, f.effectPolicy(), func(ctx context.Context, a *assert.Engine) error {
		return a.HasEffect(ctx, f.name, effect)
	})
}

// expectEffectLevel polls until the player shows effect at amplifier.
func (f *fixture) expectEffectLevel(ctx context.Context, effect string, amplifier int) error {
	return f.h.Assert.Eventually(ctx, f.effectPolicy(), func(ctx context.Context, a *assert.Engine) error {
		return a.HasEffectLevel(ctx, f.name, effect, amplifier)
	})
}

// health reads the player's health.
func (f *fixture) health(ctx context.Context) (float64, error) {
	return assert.ReadHealth(ctx, f.h.Console, f.name)
}

// spawnLoose summons an entity that keeps its AI so it can be moved by the
// world, and registers its removal.
func (f *fixture) spawnLoose(ctx context.Context, kind string, pos world.Position, tag string) error {
	if err := f.send(ctx, fmt.Sprintf("summon %s %s {Tags:[%q]}", kind, pos.Command(), tag)); err != nil {
		return err
	}
	f.h.Defer(func(ctx context.Context) error { return f.h.Entities.Remove(ctx, tag) })
	if err := f.h.Wait.Settle(ctx, settle.Spawn); err != nil {
		return err
	}
	return awaitSpawn(ctx, f.h, tag)
}

// awaitSpawn polls until tag is visible, for at most the entity spawn
// timeout.
func awaitSpawn(ctx context.Context, h *harness.Context, tag string) error {
	p := retry.Window(h.Config.Timeouts.EntitySpawn, pollDelay)
	return h.Assert.Eventually(ctx, p, func(ctx context.Context, a *assert.Engine) error {
		return a.EntityExists(ctx, tag)
	})
}

// locate reads a tagged entity's position. Timeouts and garbled replies are
// retried under the configured policy; anything else, including a missing
// entity, is returned at once.
func locate(ctx context.Context, h *harness.Context, tag string) (world.Position, error) {
	return retry.Do(ctx, h.Config.Retry, func(ctx context.Context) (world.Position, error) {
		pos, err := h.Entities.Locate(ctx, tag)
		if err != nil && !transient(err) {
			return pos, retry.Stop(err)
		}
		return pos, err
	}, func(attempt int, err error) {
		h.Logger.Log(log.NewRetryEvent("locate "+tag, attempt, err))
	})
}

func transient(err error) bool {
	var pe *parse.ParseError
	return errors.As(err, &pe) || ednet.IsTimeout(err)
}

func (f *fixture) note(format string, args ...any) {
	f.h.Logger.Log(log.NewInfoEvent(fmt.Sprintf(format, args...)))
}

// targetHealth reads a tagged target's health. A missing target is
// reported as a failed expectation that it survived.
func targetHealth(ctx context.Context, h *harness.Context, tag string) (float64, bool, error) {
	hp, err := h.Entities.Health(ctx, tag)
	var nf *parse.NotFoundError
	if errors.As(err, &nf) {
		return 0, false, nil
	}
	return hp, err == nil, err
}

func tagFor(prefix string) string {
	return entity.UniqueTag(prefix)
}
