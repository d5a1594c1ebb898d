package stories

import (
	"context"
	"fmt"
	"strings"

	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/parse"
	"github.com/cavarest/elemental-dragon/internal/scenario"
	"github.com/cavarest/elemental-dragon/internal/world"
)

func cooldownScenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{
			Name:        "ability-cooldown",
			Story:       StoryCooldowns,
			Description: "a second use straight away is refused with the time remaining",
			Tags:        []string{TagPlayer, TagCooldown},
			NeedsPlayer: true,
			Run:         abilityCooldown,
		},
		{
			Name:        "cooldown-storage",
			Story:       StoryCooldowns,
			Description: "cooldown state is readable from command storage",
			Tags:        []string{TagPlayer, TagCooldown},
			NeedsPlayer: true,
			Run:         cooldownStorage,
		},
	}
}

func abilityCooldown(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if err := f.equip(ctx, world.FragmentBurning); err != nil {
		return err
	}
	first, err := f.use(ctx, world.FragmentBurning, 1)
	if err != nil {
		return err
	}
	if _, onCooldown := parse.Cooldown(first); onCooldown {
		return scenario.Skipf("fire 1 was already cooling down: %s", first)
	}

	second, err := f.use(ctx, world.FragmentBurning, 1)
	if err != nil {
		return err
	}
	if err := h.Assert.True(strings.Contains(second, world.ReplyOnCooldown), "cooldown",
		fmt.Sprintf("immediate reuse to be refused, got %q", second)); err != nil {
		return err
	}
	remaining, ok := parse.Cooldown(second)
	if !ok {
		return &parse.ParseError{Quantity: "cooldown", Text: second}
	}
	limit := world.Cooldowns["fire_1"].Seconds()
	return h.Assert.Between(float64(remaining), 0, limit+1, "seconds of cooldown remaining")
}

func cooldownStorage(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if err := f.equip(ctx, world.FragmentBurning); err != nil {
		return err
	}
	if _, err := f.use(ctx, world.FragmentBurning, 1); err != nil {
		return err
	}

	command := fmt.Sprintf("data get storage %s cooldowns %s", world.CooldownStorage, f.name)
	res, err := h.Send(ctx, command)
	if err != nil {
		return err
	}
	if parse.Rejected(res.Raw) {
		return &parse.RejectedError{Command: command, Text: res.Raw}
	}
	return h.Assert.True(!parse.NotFound(res.Raw), "storage", "cooldown storage to be readable, got "+res.Raw)
}
