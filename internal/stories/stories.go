// Package stories holds the gameplay scenarios for the elemental dragon
// plugin, grouped by story. Every scenario drives the server only through
// the harness context it is handed.
package stories

import "github.com/cavarest/elemental-dragon/internal/scenario"

// Story names.
const (
	StoryServer    = "server"
	StoryLightning = "lightning"
	StoryBurning   = "burning"
	StoryAgility   = "agility"
	StoryImmortal  = "immortal"
	StoryCorrupted = "corrupted"
	StoryFragments = "fragments"
	StoryCooldowns = "cooldowns"
	StoryEntities  = "entities"
)

// Tags used for selection.
const (
	TagSmoke    = "smoke"
	TagPlayer   = "player"
	TagDamage   = "damage"
	TagEffect   = "effect"
	TagMovement = "movement"
	TagCooldown = "cooldown"
)

// All returns every scenario in suite order.
func All() []scenario.Scenario {
	var out []scenario.Scenario
	for _, group := range [][]scenario.Scenario{
		serverScenarios(),
		lightningScenarios(),
		burningScenarios(),
		agilityScenarios(),
		immortalScenarios(),
		corruptedScenarios(),
		fragmentScenarios(),
		cooldownScenarios(),
		entityScenarios(),
	} {
		out = append(out, group...)
	}
	return out
}

// Register adds every scenario to r.
func Register(r *scenario.Registry) error {
	for _, s := range All() {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns a registry holding All.
func Registry() *scenario.Registry {
	r := scenario.NewRegistry()
	r.MustRegister(All()...)
	return r
}
