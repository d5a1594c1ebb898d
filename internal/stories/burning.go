package stories

import (
	"context"
	"fmt"

	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/scenario"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// WrathTargetTag is the fixed tag of the Dragon's Wrath target.
const WrathTargetTag = "dmg_test"

func burningScenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{
			Name:        "dragons-wrath-damage",
			Story:       StoryBurning,
			Description: "Dragon's Wrath damages a target ten blocks north without killing it",
			Tags:        []string{TagSmoke, TagPlayer, TagDamage},
			NeedsPlayer: true,
			Run:         dragonsWrathDamage,
		},
		{
			Name:        "burning-fire-resistance",
			Story:       StoryBurning,
			Description: "equipping the Burning Fragment grants fire resistance",
			Tags:        []string{TagPlayer, TagEffect},
			NeedsPlayer: true,
			Run:         burningFireResistance,
		},
	}
}

func dragonsWrathDamage(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if _, err := h.Spawn(ctx, "zombie", world.North, WrathTargetTag, world.HealthZombie); err != nil {
		return err
	}
	if err := f.equip(ctx, world.FragmentBurning); err != nil {
		return err
	}
	if _, err := f.use(ctx, world.FragmentBurning, 1); err != nil {
		return err
	}
	if err := h.Wait.Wait(ctx, h.Config.Timeouts.Damage); err != nil {
		return err
	}

	hp, alive, err := targetHealth(ctx, h, WrathTargetTag)
	if err != nil {
		return err
	}
	if err := h.Assert.True(alive, "entity_exists", fmt.Sprintf("target [%s] to survive the hit", WrathTargetTag)); err != nil || !alive {
		return err
	}
	return h.Assert.Between(hp, 0, world.HealthZombie, "wrath target health")
}

func burningFireResistance(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if err := f.equip(ctx, world.FragmentBurning); err != nil {
		return err
	}
	return f.expectEffect(ctx, "fire_resistance")
}
