package stories

import (
	"context"
	"fmt"

	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/scenario"
	"github.com/cavarest/elemental-dragon/internal/settle"
	"github.com/cavarest/elemental-dragon/internal/world"
)

func lightningScenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{
			Name:        "lightning-strike",
			Story:       StoryLightning,
			Description: "lightning with a dragon egg in the offhand damages the target ahead",
			Tags:        []string{TagPlayer, TagDamage},
			NeedsPlayer: true,
			Run:         lightningStrike,
		},
		{
			Name:        "lightning-requires-egg",
			Story:       StoryLightning,
			Description: "lightning without a dragon egg leaves the target untouched",
			Tags:        []string{TagPlayer, TagDamage},
			NeedsPlayer: true,
			Run:         lightningRequiresEgg,
		},
	}
}

func lightningStrike(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if err := h.Entities.Give(ctx, f.name, "dragon_egg", 1); err != nil {
		return err
	}
	if err := f.send(ctx, fmt.Sprintf("item replace entity %s weapon.offhand with dragon_egg", f.name)); err != nil {
		return err
	}

	tag := tagFor("lightning_target")
	if _, err := h.Spawn(ctx, "zombie", world.North, tag, world.HealthZombie); err != nil {
		return err
	}
	if _, err := f.chat(ctx, "/lightning 1"); err != nil {
		return err
	}
	if err := h.Wait.Wait(ctx, world.LightningStrikeTotalTime); err != nil {
		return err
	}
	if err := h.Wait.Settle(ctx, settle.Effect); err != nil {
		return err
	}

	hp, alive, err := targetHealth(ctx, h, tag)
	if err != nil {
		return err
	}
	if !alive {
		// Three strikes can kill outright.
		f.note("lightning target [%s] was killed", tag)
		return nil
	}
	return h.Assert.LessThan(hp, world.HealthZombie, "lightning target health")
}

func lightningRequiresEgg(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	tag := tagFor("lightning_control")
	if _, err := h.Spawn(ctx, "zombie", world.North, tag, world.HealthZombie); err != nil {
		return err
	}
	if _, err := f.chat(ctx, "/lightning 1"); err != nil {
		return err
	}
	if err := h.Wait.Wait(ctx, world.LightningStrikeTotalTime); err != nil {
		return err
	}

	hp, alive, err := targetHealth(ctx, h, tag)
	if err != nil {
		return err
	}
	if err := h.Assert.True(alive, "entity_exists", fmt.Sprintf("target [%s] to survive", tag)); err != nil || !alive {
		return err
	}
	return h.Assert.Approx(hp, world.HealthZombie, 0.01, "untouched target health")
}
