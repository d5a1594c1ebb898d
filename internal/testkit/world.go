// Package testkit provides an in-memory game world that understands the
// subset of the command grammar the harness emits. It satisfies
// net.Commander so controllers and assertions can be tested without a
// server.
package testkit

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	ednet "github.com/cavarest/elemental-dragon/internal/net"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// Entity is a simulated server entity.
type Entity struct {
	Kind     string
	Tags     []string
	Position world.Position
	Health   float64
}

// HasTag reports whether e carries tag.
func (e *Entity) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Player is a simulated online player.
type Player struct {
	Position  world.Position
	Health    float64
	Effects   map[string]int // effect id → amplifier
	Inventory map[string]int
}

// PositionFormat renders a position in one of the server's encodings.
type PositionFormat func(p world.Position) string

// Bracket is the modern "[Xd, Yd, Zd]" encoding.
func Bracket(p world.Position) string {
	return fmt.Sprintf("[%sd, %sd, %sd]", num(p.X), num(p.Y), num(p.Z))
}

// Labeled is the "x: Xd, y: Yd, z: Zd" encoding.
func Labeled(p world.Position) string {
	return fmt.Sprintf("x: %sd, y: %sd, z: %sd", num(p.X), num(p.Y), num(p.Z))
}

// Brace is the "{x: Xd, ...}" encoding.
func Brace(p world.Position) string {
	return "{" + Labeled(p) + "}"
}

func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// World is the fake server. The zero value is not usable; call NewWorld.
type World struct {
	mu       sync.Mutex
	entities []*Entity
	players  map[string]*Player
	commands []string

	// PosFormat selects the encoding used for Pos queries.
	PosFormat PositionFormat
	// OnCommand, when set, may answer a command before the built-in
	// interpreter sees it. It runs with the world locked.
	OnCommand func(w *World, cmd string) (reply string, handled bool)
	// Fail, when set, turns a command into a transport error.
	Fail func(cmd string) error
}

// NewWorld returns an empty world with the given players online.
func NewWorld(players ...string) *World {
	w := &World{players: map[string]*Player{}, PosFormat: Bracket}
	for _, name := range players {
		w.players[name] = newPlayer()
	}
	return w
}

func newPlayer() *Player {
	return &Player{
		Position:  world.Origin,
		Health:    world.HealthPlayer,
		Effects:   map[string]int{},
		Inventory: map[string]int{},
	}
}

// Join brings a player online at the origin unless already present.
func (w *World) Join(name string) *Player {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.players[name]; ok {
		return p
	}
	p := newPlayer()
	w.players[name] = p
	return p
}

// Leave takes a player offline.
func (w *World) Leave(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.players, name)
}

func (w *World) Backend() string { return "world" }

// Send interprets one command.
func (w *World) Send(ctx context.Context, command string) (ednet.CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return ednet.CommandResult{}, &ednet.TimeoutError{Backend: "world", Command: command, Err: err}
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	command = strings.TrimPrefix(strings.TrimSpace(command), "/")
	w.commands = append(w.commands, command)
	if w.Fail != nil {
		if err := w.Fail(command); err != nil {
			return ednet.CommandResult{}, err
		}
	}
	if w.OnCommand != nil {
		if reply, ok := w.OnCommand(w, command); ok {
			return ednet.CommandResult{Command: command, Backend: "world", Raw: reply}, nil
		}
	}
	return ednet.CommandResult{Command: command, Backend: "world", Raw: w.exec(command)}, nil
}

// Commands returns every command received, in order.
func (w *World) Commands() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.commands...)
}

// Tagged returns the entities carrying tag. Callers outside OnCommand must
// not hold the result across Sends.
func (w *World) Tagged(tag string) []*Entity {
	var out []*Entity
	for _, e := range w.entities {
		if e.HasTag(tag) {
			out = append(out, e)
		}
	}
	return out
}

// Lookup returns a copy of the first entity with tag.
func (w *World) Lookup(tag string) (Entity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if es := w.Tagged(tag); len(es) > 0 {
		return *es[0], true
	}
	return Entity{}, false
}

// Snapshot returns copies of every entity in spawn order.
func (w *World) Snapshot() []Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Entity, len(w.entities))
	for i, e := range w.entities {
		out[i] = *e
	}
	return out
}

// Count returns how many entities exist.
func (w *World) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entities)
}

// Player returns a player for inspection or mutation. Use Update to mutate
// while commands may be in flight.
func (w *World) Player(name string) *Player {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.players[name]
}

// Update runs fn with the world locked.
func (w *World) Update(fn func(w *World)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w)
}

// Players returns the online player table. Only call with the world locked.
func (w *World) Players() map[string]*Player { return w.players }

// All returns the live entity list. Only call with the world locked.
func (w *World) All() []*Entity { return w.entities }

// AddEntity inserts an entity directly. Only call with the world locked.
func (w *World) AddEntity(e *Entity) { w.entities = append(w.entities, e) }

// Reap removes every entity whose health has dropped to zero, as the server
// does on death, and returns how many were removed. Only call with the world
// locked.
func (w *World) Reap() int {
	keep := w.entities[:0]
	for _, e := range w.entities {
		if e.Health > 0 {
			keep = append(keep, e)
		}
	}
	for i := len(keep); i < len(w.entities); i++ {
		w.entities[i] = nil
	}
	dead := len(w.entities) - len(keep)
	w.entities = keep
	return dead
}

// Exec runs the built-in interpreter for cmd. Only call with the world
// locked, typically from OnCommand to fall through after a side effect.
func (w *World) Exec(cmd string) string { return w.exec(cmd) }

var (
	summonRe   = regexp.MustCompile(`^summon (\S+) (\S+) (\S+) (\S+)(?: (\{.*\}))?$`)
	tagsRe     = regexp.MustCompile(`Tags:\["([^"]+)"\]`)
	healthRe   = regexp.MustCompile(`Health:(-?[\d.]+)f`)
	selectorRe = regexp.MustCompile(`^@e\[(.*)\]$`)
	effectRe   = regexp.MustCompile(`"minecraft:([a-z_]+)":\{(?:amplifier:(\d+))?\}`)
	sayRe      = regexp.MustCompile(` run say (\S+)$`)
)

func (w *World) exec(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return ""
	}
	switch fields[0] {
	case "summon":
		return w.summon(cmd)
	case "data":
		return w.dataGet(fields)
	case "kill":
		return w.kill(fields)
	case "execute":
		return w.execute(cmd, fields)
	case "tp":
		return w.teleport(fields)
	case "give":
		return w.give(fields)
	case "clear":
		return w.clear(fields)
	case "effect":
		return w.effect(fields)
	case "say":
		return "[Rcon] " + strings.Join(fields[1:], " ")
	case "seed":
		return "Seed: [-4172144997902289642]"
	case "list":
		names := make([]string, 0, len(w.players))
		for n := range w.players {
			names = append(names, n)
		}
		sort.Strings(names)
		return fmt.Sprintf("There are %d of a max of 20 players online: %s", len(names), strings.Join(names, ", "))
	}
	return "Unknown or incomplete command, see below for error"
}

func (w *World) summon(cmd string) string {
	m := summonRe.FindStringSubmatch(cmd)
	if m == nil {
		return "Incorrect argument for command"
	}
	kind := strings.TrimPrefix(m[1], "minecraft:")
	if kind == "unicorn" {
		return "Unknown entity: minecraft:unicorn"
	}
	var xyz [3]float64
	for i := range xyz {
		f, err := strconv.ParseFloat(m[i+2], 64)
		if err != nil {
			return "Incorrect argument for command"
		}
		xyz[i] = f
	}
	e := &Entity{Kind: kind, Position: world.Pos(xyz[0], xyz[1], xyz[2]), Health: 20}
	if t := tagsRe.FindStringSubmatch(m[5]); t != nil {
		e.Tags = []string{t[1]}
	}
	if h := healthRe.FindStringSubmatch(m[5]); h != nil {
		e.Health, _ = strconv.ParseFloat(h[1], 64)
	}
	w.entities = append(w.entities, e)
	return "Summoned new " + displayName(kind)
}

// selectTag extracts tag=T from an @e selector.
func selectTag(sel string) (string, bool) {
	m := selectorRe.FindStringSubmatch(sel)
	if m == nil {
		return "", false
	}
	for _, part := range strings.Split(m[1], ",") {
		if v, ok := strings.CutPrefix(part, "tag="); ok {
			return v, true
		}
	}
	return "", false
}

func (w *World) dataGet(f []string) string {
	// data get entity <selector> <path>
	if len(f) < 5 || f[1] != "get" || f[2] != "entity" {
		if len(f) >= 4 && f[1] == "get" && f[2] == "storage" {
			return "Storage elemental_dragon:cooldowns has the following contents: {}"
		}
		return "Incorrect argument for command"
	}
	sel, path := f[3], f[4]
	if p, ok := w.players[sel]; ok {
		switch path {
		case "Pos":
			return sel + " has the following entity data: " + w.PosFormat(p.Position)
		case "Health":
			return fmt.Sprintf("%s has the following entity data: %sf", sel, num(p.Health))
		}
		return "Found no elements matching " + path
	}
	tag, ok := selectTag(sel)
	if !ok {
		return "No entity was found"
	}
	es := w.Tagged(tag)
	if len(es) == 0 {
		return "No entity was found"
	}
	e := es[0]
	switch path {
	case "Pos":
		return displayName(e.Kind) + " has the following entity data: " + w.PosFormat(e.Position)
	case "Health":
		return fmt.Sprintf("%s has the following entity data: %sf", displayName(e.Kind), num(e.Health))
	}
	return "Found no elements matching " + path
}

func (w *World) kill(f []string) string {
	if len(f) < 2 {
		return "Incorrect argument for command"
	}
	sel := f[1]
	var keep []*Entity
	killed := 0
	switch {
	case sel == "@e[type=!player]":
		killed = len(w.entities)
	default:
		tag, ok := selectTag(sel)
		if !ok {
			return "No entity was found"
		}
		for _, e := range w.entities {
			if e.HasTag(tag) {
				killed++
				continue
			}
			keep = append(keep, e)
		}
	}
	w.entities = keep
	if killed == 0 {
		return "No entity was found"
	}
	return fmt.Sprintf("Killed %d entities", killed)
}

func (w *World) execute(cmd string, f []string) string {
	// execute as <player> run <cmd>
	if len(f) >= 5 && f[1] == "as" && f[3] == "run" {
		if _, ok := w.players[f[2]]; !ok {
			return "No player was found"
		}
		return w.exec(strings.Join(f[4:], " "))
	}

	say := sayRe.FindStringSubmatch(cmd)
	if say == nil {
		return "Incorrect argument for command"
	}
	marker := say[1]

	// execute (if|unless) entity <selector> run say M
	if len(f) >= 4 && (f[1] == "if" || f[1] == "unless") && f[2] == "entity" {
		tag, _ := selectTag(f[3])
		found := len(w.Tagged(tag)) > 0
		if found == (f[1] == "if") {
			return "[Rcon] " + marker
		}
		return "Test failed"
	}

	// execute as <player> (if|unless) predicate {...} run say M
	if len(f) >= 6 && f[1] == "as" && (f[3] == "if" || f[3] == "unless") && f[4] == "predicate" {
		p, ok := w.players[f[2]]
		if !ok {
			return "No entity was found"
		}
		m := effectRe.FindStringSubmatch(cmd)
		if m == nil {
			return "Incorrect argument for command"
		}
		amp, has := p.Effects[m[1]]
		if has && m[2] != "" {
			want, _ := strconv.Atoi(m[2])
			has = amp == want
		}
		if has == (f[3] == "if") {
			return "[" + f[2] + "] " + marker
		}
		return "Test failed"
	}
	return "Incorrect argument for command"
}

func (w *World) teleport(f []string) string {
	if len(f) < 5 {
		return "Incorrect argument for command"
	}
	p, ok := w.players[f[1]]
	if !ok {
		return "No entity was found"
	}
	var xyz [3]float64
	for i := range xyz {
		v, err := strconv.ParseFloat(f[i+2], 64)
		if err != nil {
			return "Incorrect argument for command"
		}
		xyz[i] = v
	}
	p.Position = world.Pos(xyz[0], xyz[1], xyz[2])
	return "Teleported " + f[1]
}

func (w *World) give(f []string) string {
	if len(f) < 3 {
		return "Incorrect argument for command"
	}
	p, ok := w.players[f[1]]
	if !ok {
		return "No player was found"
	}
	n := 1
	if len(f) >= 4 {
		n, _ = strconv.Atoi(f[3])
	}
	p.Inventory[f[2]] += n
	return fmt.Sprintf("Gave %d [%s] to %s", n, f[2], f[1])
}

func (w *World) clear(f []string) string {
	if len(f) < 2 {
		return "Incorrect argument for command"
	}
	p, ok := w.players[f[1]]
	if !ok {
		return "No player was found"
	}
	total := 0
	for _, n := range p.Inventory {
		total += n
	}
	p.Inventory = map[string]int{}
	if total == 0 {
		return "No items were found on player " + f[1]
	}
	return fmt.Sprintf("Removed %d item(s) from player %s", total, f[1])
}

func (w *World) effect(f []string) string {
	if len(f) < 3 {
		return "Incorrect argument for command"
	}
	p, ok := w.players[f[2]]
	if !ok {
		return "No entity was found"
	}
	switch f[1] {
	case "clear":
		p.Effects = map[string]int{}
		return "Removed every effect from " + f[2]
	case "give":
		if len(f) < 4 {
			return "Incorrect argument for command"
		}
		amp := 0
		if len(f) >= 6 {
			amp, _ = strconv.Atoi(f[5])
		}
		id := strings.TrimPrefix(f[3], "minecraft:")
		if id == "instant_health" {
			p.Health = world.HealthPlayer
			return "Applied effect to " + f[2]
		}
		p.Effects[id] = amp
		return "Applied effect to " + f[2]
	}
	return "Incorrect argument for command"
}

func displayName(kind string) string {
	if kind == "" {
		return kind
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}
