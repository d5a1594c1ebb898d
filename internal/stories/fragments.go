package stories

import (
	"context"
	"fmt"
	"strings"

	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/scenario"
	"github.com/cavarest/elemental-dragon/internal/world"
)

func fragmentScenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{
			Name:        "one-fragment-limit",
			Story:       StoryFragments,
			Description: "a player carrying one fragment cannot equip another",
			Tags:        []string{TagSmoke, TagPlayer},
			NeedsPlayer: true,
			Run:         oneFragmentLimit,
		},
		{
			Name:        "equip-without-fragments",
			Story:       StoryFragments,
			Description: "equipping with an empty inventory hands out the fragment",
			Tags:        []string{TagPlayer},
			NeedsPlayer: true,
			Run:         equipWithoutFragments,
		},
	}
}

func oneFragmentLimit(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if err := h.Entities.Give(ctx, f.name, world.FragmentImmortal.Item(), 1); err != nil {
		return err
	}
	reply, err := f.chat(ctx, "/"+string(world.FragmentBurning)+" equip")
	if err != nil {
		return err
	}
	if err := h.Assert.True(!strings.Contains(reply, world.ReplyEquipped), "equip",
		fmt.Sprintf("second fragment to be refused, got %q", reply)); err != nil {
		return err
	}

	n, err := h.Entities.ClearInventory(ctx, f.name)
	if err != nil {
		return err
	}
	return h.Assert.Approx(float64(n), 1, 0, "items held after refused equip")
}

func equipWithoutFragments(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if _, err := f.chat(ctx, "/"+string(world.FragmentBurning)+" equip"); err != nil {
		return err
	}
	n, err := h.Entities.ClearInventory(ctx, f.name)
	if err != nil {
		return err
	}
	return h.Assert.GreaterThan(float64(n), 0, "items held after equip")
}
