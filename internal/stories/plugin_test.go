package stories

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cavarest/elemental-dragon/internal/testkit"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// plugin answers the plugin's commands on a testkit world closely enough
// for the scenarios to observe the effects they check.
type plugin struct {
	equipped map[string]world.Fragment
	used     map[string]time.Time
	offhand  map[string]bool
	active   map[string]bool // "player/ability" windows
	// wrathDamage overrides the Dragon's Wrath hit.
	wrathDamage float64
	// passiveLevel is the amplifier of equip effects.
	passiveLevel int
}

func newPlugin() *plugin {
	return &plugin{
		equipped:    map[string]world.Fragment{},
		used:        map[string]time.Time{},
		offhand:     map[string]bool{},
		active:      map[string]bool{},
		wrathDamage: world.DamageDragonsWrath,
	}
}

var (
	execAsRe  = regexp.MustCompile(`^execute as (\S+) run (.*)$`)
	damageRe  = regexp.MustCompile(`^damage (\S+) ([\d.]+)`)
	offhandRe = regexp.MustCompile(`^item replace entity (\S+) weapon\.offhand with (\S+)$`)
)

var passives = map[world.Fragment]string{
	world.FragmentBurning:   "fire_resistance",
	world.FragmentImmortal:  "resistance",
	world.FragmentCorrupted: "night_vision",
}

var abilityNames = map[string]string{
	"fire 1": "Dragon's Wrath", "fire 2": "Infernal Dominion",
	"agile 1": "Draconic Surge", "agile 2": "Wing Burst",
	"immortal 1": "Draconic Reflex", "immortal 2": "Essence Rebirth",
	"corrupt 1": "Dread Gaze", "corrupt 2": "Life Devourer",
}

func (pl *plugin) install(w *testkit.World) {
	w.OnCommand = pl.handle
}

func (pl *plugin) handle(w *testkit.World, cmd string) (string, bool) {
	if m := offhandRe.FindStringSubmatch(cmd); m != nil {
		pl.offhand[m[1]] = m[2] == "dragon_egg"
		return "Replaced a slot on " + m[1], true
	}
	if name, ok := strings.CutPrefix(cmd, "clear "); ok {
		pl.offhand[name] = false
		return "", false
	}
	m := execAsRe.FindStringSubmatch(cmd)
	if m == nil {
		return "", false
	}
	name, inner := m[1], m[2]
	p, ok := w.Players()[name]
	if !ok {
		return "", false
	}

	if d := damageRe.FindStringSubmatch(inner); d != nil {
		amount, _ := strconv.ParseFloat(d[2], 64)
		return pl.damage(w, name, p, d[1], amount), true
	}

	f := strings.Fields(inner)
	if len(f) != 2 {
		return "", false
	}
	switch f[0] {
	case "lightning":
		if !pl.offhand[name] {
			return "You need a Dragon Egg in your offhand!", true
		}
		pl.strike(w, world.DamageLightningStrike)
		return "Used Lightning Strike!", true
	case "fire", "agile", "immortal", "corrupt":
	default:
		return "", false
	}
	frag := world.Fragment(f[0])
	if f[1] == "equip" {
		return pl.equip(name, p, frag), true
	}
	return pl.use(w, name, p, frag, inner), true
}

func (pl *plugin) equip(name string, p *testkit.Player, frag world.Fragment) string {
	if cur, ok := pl.equipped[name]; ok && cur != frag {
		return world.ReplyOneFragment
	}
	for _, other := range []world.Fragment{world.FragmentBurning, world.FragmentAgility, world.FragmentImmortal, world.FragmentCorrupted} {
		if other != frag && p.Inventory[other.Item()] > 0 {
			return world.ReplyOneFragment
		}
	}
	if p.Inventory[frag.Item()] == 0 {
		p.Inventory[frag.Item()] = 1
	}
	pl.equipped[name] = frag
	if effect, ok := passives[frag]; ok {
		p.Effects[effect] = pl.passiveLevel
	}
	return world.ReplyEquipped + string(frag) + " fragment!"
}

func (pl *plugin) use(w *testkit.World, name string, p *testkit.Player, frag world.Fragment, ability string) string {
	if pl.equipped[name] != frag {
		return fmt.Sprintf("Equip the fragment first with /%s equip!", frag)
	}
	key := name + "/" + ability
	cooldown := world.Cooldowns[strings.ReplaceAll(ability, " ", "_")]
	if last, ok := pl.used[key]; ok {
		if left := cooldown - time.Since(last); left > 0 {
			return fmt.Sprintf("%s %d seconds remaining.", world.ReplyOnCooldown, int(math.Ceil(left.Seconds())))
		}
	}
	pl.used[key] = time.Now()

	switch ability {
	case "fire 1":
		pl.strike(w, pl.wrathDamage)
	case "agile 1":
		p.Position.Z -= 20
	case "agile 2":
		pl.burst(w, p.Position)
	default:
		pl.active[key] = true
	}
	return world.ReplyUsed + abilityNames[ability] + "!"
}

// strike hits the first entity north of the origin.
func (pl *plugin) strike(w *testkit.World, amount float64) {
	for _, e := range pl.entities(w) {
		if e.Position.Z < 0 {
			e.Health -= amount
			w.Reap()
			return
		}
	}
}

// burst pushes everything within eight blocks ten blocks further out.
func (pl *plugin) burst(w *testkit.World, center world.Position) {
	for _, e := range pl.entities(w) {
		d := center.HorizontalDistanceTo(e.Position)
		if d == 0 || d > 8 {
			continue
		}
		scale := (d + 10) / d
		e.Position.X = center.X + (e.Position.X-center.X)*scale
		e.Position.Z = center.Z + (e.Position.Z-center.Z)*scale
	}
}

func (pl *plugin) damage(w *testkit.World, name string, p *testkit.Player, target string, amount float64) string {
	if target == "@s" {
		p.Health -= amount
		if p.Health <= 0 && pl.equipped[name] == world.FragmentImmortal {
			p.Health = 1
		}
		p.Health = math.Max(p.Health, 0)
		return "Applied damage to " + name
	}
	tag, ok := strings.CutPrefix(strings.TrimSuffix(target, "]"), "@e[tag=")
	if !ok {
		return "Incorrect argument for command"
	}
	hit := 0
	for _, e := range pl.entities(w) {
		if e.HasTag(tag) {
			e.Health -= amount
			hit++
		}
	}
	w.Reap()
	if hit == 0 {
		return "No entity was found"
	}
	if pl.active[name+"/corrupt 2"] {
		p.Health = math.Min(world.HealthPlayer, p.Health+amount*world.LifeDevourerStealRatio)
	}
	return "Applied damage"
}

// entities returns live world entities. Only call with the world locked.
func (pl *plugin) entities(w *testkit.World) []*testkit.Entity {
	return w.All()
}
