package stories

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/parse"
	"github.com/cavarest/elemental-dragon/internal/scenario"
	"github.com/cavarest/elemental-dragon/internal/settle"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// wingBurstRadius is the push radius of Wing Burst.
const wingBurstRadius = 8.0

func agilityScenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{
			Name:        "draconic-surge-dash",
			Story:       StoryAgility,
			Description: "Draconic Surge dashes the player forward",
			Tags:        []string{TagPlayer, TagMovement},
			NeedsPlayer: true,
			Run:         draconicSurgeDash,
		},
		{
			Name:        "wing-burst-push",
			Story:       StoryAgility,
			Description: "Wing Burst pushes nearby entities away",
			Tags:        []string{TagPlayer, TagMovement},
			NeedsPlayer: true,
			Run:         wingBurstPush,
		},
		{
			Name:        "wing-burst-radius",
			Story:       StoryAgility,
			Description: "Wing Burst leaves entities beyond its radius alone",
			Tags:        []string{TagPlayer, TagMovement},
			NeedsPlayer: true,
			Run:         wingBurstOutsideRadius,
		},
	}
}

func draconicSurgeDash(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	if err := f.equip(ctx, world.FragmentAgility); err != nil {
		return err
	}
	before, err := f.p.Position(ctx)
	if err != nil {
		return err
	}
	if _, err := f.use(ctx, world.FragmentAgility, 1); err != nil {
		return err
	}
	if err := h.Wait.Wait(ctx, world.DraconicSurgeDash); err != nil {
		return err
	}
	after, err := f.p.Position(ctx)
	if err != nil {
		return err
	}
	moved := before.HorizontalDistanceTo(after)
	f.note("surge moved %s %.1f blocks", f.name, moved)
	return h.Assert.GreaterThan(moved, 1, "dash displacement")
}

// pushProbe is one entity whose distance from the player is tracked.
type pushProbe struct {
	tag    string
	before float64
}

func wingBurstPush(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}

	prefix := tagFor("wing")
	var probes []pushProbe
	for _, z := range []float64{-2, -4, -6, -8} {
		tag := fmt.Sprintf("%s_%d", prefix, int(-z))
		if err := f.spawnLoose(ctx, "pig", world.Pos(0, world.GroundY, z), tag); err != nil {
			return err
		}
		probes = append(probes, pushProbe{tag: tag})
	}
	if err := f.equip(ctx, world.FragmentAgility); err != nil {
		return err
	}

	seen, err := f.p.Entities(ctx)
	if err != nil {
		return err
	}
	pigs := 0
	for _, e := range seen {
		if e.Name == "pig" || e.Type == "minecraft:pig" {
			pigs++
		}
	}
	if err := h.Assert.GreaterThan(float64(pigs), 3, "pigs visible to the player"); err != nil {
		return err
	}

	origin, err := f.p.Position(ctx)
	if err != nil {
		return err
	}
	for i := range probes {
		pos, err := locate(ctx, h, probes[i].tag)
		if err != nil {
			return err
		}
		probes[i].before = origin.HorizontalDistanceTo(pos)
	}

	if _, err := f.use(ctx, world.FragmentAgility, 2); err != nil {
		return err
	}
	if err := h.Wait.Wait(ctx, world.WingBurstPush); err != nil {
		return err
	}
	if err := h.Wait.Settle(ctx, settle.Effect); err != nil {
		return err
	}

	now, err := f.p.Position(ctx)
	if err != nil {
		return err
	}
	pushed := 0
	for _, p := range probes {
		pos, err := locate(ctx, h, p.tag)
		var nf *parse.NotFoundError
		if errors.As(err, &nf) {
			continue
		}
		if err != nil {
			return err
		}
		d := now.HorizontalDistanceTo(pos)
		f.note("[%s] was %.1f away, now %.1f", p.tag, p.before, d)
		if d-p.before > 0.5 {
			pushed++
		}
	}
	return h.Assert.GreaterThan(float64(pushed), 0, "entities pushed outward")
}

func wingBurstOutsideRadius(ctx context.Context, h *harness.Context) error {
	f, err := setup(ctx, h)
	if err != nil {
		return err
	}
	origin, err := f.p.Position(ctx)
	if err != nil {
		return err
	}

	tag := tagFor("wing_far")
	spot := world.Pos(math.Floor(origin.X)+15, world.GroundY, math.Floor(origin.Z))
	if err := f.spawnLoose(ctx, "pig", spot, tag); err != nil {
		return err
	}
	if err := f.equip(ctx, world.FragmentAgility); err != nil {
		return err
	}

	pos, err := locate(ctx, h, tag)
	if err != nil {
		return err
	}
	before := origin.HorizontalDistanceTo(pos)
	if before < wingBurstRadius+2 {
		return scenario.Skipf("pig landed %.1f blocks away, need more than %.0f", before, wingBurstRadius+2)
	}

	if _, err := f.use(ctx, world.FragmentAgility, 2); err != nil {
		return err
	}
	if err := h.Wait.Wait(ctx, world.WingBurstPush); err != nil {
		return err
	}
	if err := h.Wait.Settle(ctx, settle.Effect); err != nil {
		return err
	}

	now, err := f.p.Position(ctx)
	if err != nil {
		return err
	}
	pos, err = locate(ctx, h, tag)
	if err != nil {
		return err
	}
	moved := math.Abs(now.HorizontalDistanceTo(pos) - before)
	return h.Assert.LessThan(moved, 2, "movement of entity beyond the burst radius")
}
