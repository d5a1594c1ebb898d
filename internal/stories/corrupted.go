package stories

import (
	"context"
	"fmt"

	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/scenario"
	"github.com/cavarest/elemental-dragon/internal/settle"
	"github.com/cavarest/elemental-dragon/internal/world"
)

func corruptedScenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{
			Name:        "dread-gaze",
			Story:       StoryCorrupted,
			Description: "a Dread Gaze hit leaves the target alive and frozen",
			Tags:        []string{TagPlayer, TagDamage},
			NeedsPlayer: true,
			Run:         dreadGaze,
		},
		{
			Name:        "life-devourer",
			Story:       StoryCorrupted,
			Description: "Life Devourer heals the player for part of the damage dealt",
			Tags:        []string{TagPlayer, TagDamage},
			NeedsPlayer: true,
			Run:         lifeDevourer,
		},
		{
			Name:        "corrupted-night-vision",
			Story:       StoryCorrupted,
			Description: "equipping the Corrupted Core grants night vision",
			Tags:        []string{TagPlayer, TagEffect},
			NeedsPlayer: true,
			Run:         corruptedNightVision,
		},
	}
}

func dreadGaze(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if err := f.equip(ctx, world.FragmentCorrupted); err != nil {
		return err
	}
	if _, err := f.use(ctx, world.FragmentCorrupted, 1); err != nil {
		return err
	}

	tag := tagFor("dread_gaze_target")
	if _, err := h.Spawn(ctx, "zombie", world.Pos(0, world.GroundY, -3), tag, 100); err != nil {
		return err
	}
	if err := f.execAs(ctx, fmt.Sprintf("damage @e[tag=%s] 5", tag)); err != nil {
		return err
	}
	if err := h.Wait.Settle(ctx, settle.Effect); err != nil {
		return err
	}
	if err := h.Assert.EntityExists(ctx, tag); err != nil {
		return err
	}
	hp, alive, err := targetHealth(ctx, h, tag)
	if err != nil || !alive {
		return err
	}
	return h.Assert.LessThan(hp, 100, "gazed target health")
}

func lifeDevourer(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if err := f.execAs(ctx, "damage @s 10"); err != nil {
		return err
	}
	if err := h.Wait.Settle(ctx, settle.Effect); err != nil {
		return err
	}
	wounded, err := f.health(ctx)
	if err != nil {
		return err
	}

	if err := f.equip(ctx, world.FragmentCorrupted); err != nil {
		return err
	}
	if _, err := f.use(ctx, world.FragmentCorrupted, 2); err != nil {
		return err
	}
	tag := tagFor("life_devourer_target")
	if _, err := h.Spawn(ctx, "zombie", world.Pos(0, world.GroundY, -3), tag, world.HealthZombie); err != nil {
		return err
	}
	if err := f.execAs(ctx, fmt.Sprintf("damage @e[tag=%s] 10", tag)); err != nil {
		return err
	}
	if err := h.Wait.Settle(ctx, settle.Effect); err != nil {
		return err
	}

	healed, err := f.health(ctx)
	if err != nil {
		return err
	}
	f.note("life devourer: %.1f -> %.1f, expected gain %.1f", wounded, healed, 10*world.LifeDevourerStealRatio)
	return h.Assert.GreaterThan(healed, wounded, "player health after lifesteal hit")
}

func corruptedNightVision(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if err := f.equip(ctx, world.FragmentCorrupted); err != nil {
		return err
	}
	return f.expectEffect(ctx, "night_vision")
}
