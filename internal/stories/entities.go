package stories

import (
	"context"
	"fmt"

	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/scenario"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// ringRadius matches the area-of-effect radius of the burst abilities.
const ringRadius = 8.0

func entityScenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{
			Name:        "aoe-ring",
			Story:       StoryEntities,
			Description: "ring placement puts one entity at each cardinal point",
			Tags:        []string{TagSmoke},
			Run:         aoeRing,
		},
		{
			Name:        "clear-all",
			Story:       StoryEntities,
			Description: "clearing the world removes every tagged entity",
			Tags:        []string{TagSmoke},
			Run:         clearAll,
		},
	}
}

func aoeRing(ctx context.Context, h *harness.Context) error {
	prefix := tagFor("ring")
	ring, err := h.Entities.RingSpawn(ctx, ringRadius, "zombie", prefix, world.HealthZombie)
	for _, e := range ring {
		h.Defer(func(ctx context.Context) error { return h.Entities.Remove(ctx, e.Tag) })
	}
	if err != nil {
		return err
	}
	if err := h.Assert.Approx(float64(len(ring)), float64(len(world.Cardinals)), 0, "ring size"); err != nil {
		return err
	}
	for _, e := range ring {
		if err := awaitSpawn(ctx, h, e.Tag); err != nil {
			return err
		}
		pos, err := locate(ctx, h, e.Tag)
		if err != nil {
			return err
		}
		if err := h.Assert.Approx(world.Origin.HorizontalDistanceTo(pos), ringRadius, 0.5,
			fmt.Sprintf("[%s] distance from origin", e.Tag)); err != nil {
			return err
		}
	}
	return nil
}

func clearAll(ctx context.Context, h *harness.Context) error {
	var tags []string
	for i, pos := range []world.Position{world.North, world.East, world.SouthWest} {
		tag := tagFor(fmt.Sprintf("clear_%d", i))
		if _, err := h.Spawn(ctx, "zombie", pos, tag, world.HealthZombie); err != nil {
			return err
		}
		tags = append(tags, tag)
	}
	for _, tag := range tags {
		if err := awaitSpawn(ctx, h, tag); err != nil {
			return err
		}
	}
	if err := h.Entities.ClearAll(ctx); err != nil {
		return err
	}
	for _, tag := range tags {
		if err := h.Assert.EntityNotExists(ctx, tag); err != nil {
			return err
		}
	}
	return nil
}
