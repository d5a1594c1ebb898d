package stories

import (
	"context"

	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/scenario"
	"github.com/cavarest/elemental-dragon/internal/settle"
	"github.com/cavarest/elemental-dragon/internal/world"
)

func immortalScenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{
			Name:        "immortal-resistance",
			Story:       StoryImmortal,
			Description: "equipping the Immortal Fragment grants resistance",
			Tags:        []string{TagPlayer, TagEffect},
			NeedsPlayer: true,
			Run:         immortalResistance,
		},
		{
			Name:        "immortal-totem",
			Story:       StoryImmortal,
			Description: "the Immortal Fragment saves the player from lethal damage",
			Tags:        []string{TagPlayer, TagDamage},
			NeedsPlayer: true,
			Run:         immortalTotem,
		},
		{
			Name:        "essence-rebirth",
			Story:       StoryImmortal,
			Description: "Essence Rebirth keeps the player alive through repeated heavy hits",
			Tags:        []string{TagPlayer, TagDamage},
			NeedsPlayer: true,
			Run:         essenceRebirth,
		},
	}
}

func immortalResistance(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if err := f.equip(ctx, world.FragmentImmortal); err != nil {
		return err
	}
	// Resistance I is amplifier 0.
	return f.expectEffectLevel(ctx, "resistance", 0)
}

func immortalTotem(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if err := f.equip(ctx, world.FragmentImmortal); err != nil {
		return err
	}
	if err := f.execAs(ctx, "damage @s 20"); err != nil {
		return err
	}
	if err := h.Wait.Settle(ctx, settle.Effect); err != nil {
		return err
	}
	hp, err := f.health(ctx)
	if err != nil {
		return err
	}
	return h.Assert.GreaterThan(hp, 0, "health after lethal damage")
}

func essenceRebirth(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if err := f.equip(ctx, world.FragmentImmortal); err != nil {
		return err
	}
	if _, err := f.use(ctx, world.FragmentImmortal, 2); err != nil {
		return err
	}
	for range 5 {
		if err := f.execAs(ctx, "damage @s 10"); err != nil {
			return err
		}
	}
	if err := h.Wait.Settle(ctx, settle.Effect); err != nil {
		return err
	}
	hp, err := f.health(ctx)
	if err != nil {
		return err
	}
	return h.Assert.GreaterThan(hp, 0, "health inside the rebirth window")
}
