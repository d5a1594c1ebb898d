package stories

import (
	"context"
	"strings"

	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/scenario"
)

func serverScenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{
			Name:        "server-seed",
			Story:       StoryServer,
			Description: "the console answers a basic query",
			Tags:        []string{TagSmoke},
			Run:         serverSeed,
		},
		{
			Name:        "server-list",
			Story:       StoryServer,
			Description: "the console lists online players",
			Tags:        []string{TagSmoke},
			Run:         serverList,
		},
		{
			Name:        "player-join",
			Story:       StoryServer,
			Description: "the simulated player joins and is seen by the server",
			Tags:        []string{TagSmoke, TagPlayer},
			NeedsPlayer: true,
			Run:         playerJoin,
		},
	}
}

func serverSeed(ctx context.Context, h *harness.Context) error {
	res, err := h.Send(ctx, "seed")
	if err != nil {
		return err
	}
	return h.Assert.True(strings.Contains(res.Raw, "Seed"), "response", "seed reply to contain Seed, got "+res.Raw)
}

func serverList(ctx context.Context, h *harness.Context) error {
	res, err := h.Send(ctx, "list")
	if err != nil {
		return err
	}
	return h.Assert.True(strings.Contains(res.Raw, "players"), "response", "list reply to mention players, got "+res.Raw)
}

func playerJoin(ctx context.Context, h *harness.Context) error {
	p, err := h.RequirePlayer()
	if err != nil {
		return err
	}
	if err := h.Assert.True(p.Username() == h.Config.Player, "player", "player to join as "+h.Config.Player); err != nil {
		return err
	}

	res, err := h.Send(ctx, "list")
	if err != nil {
		return err
	}
	if err := h.Assert.True(strings.Contains(res.Raw, p.Username()), "player", "server to list "+p.Username()); err != nil {
		return err
	}

	t, err := p.Telemetry(ctx)
	if err != nil {
		return err
	}
	return h.Assert.GreaterThan(t.Health, 0, "joined player health")
}
