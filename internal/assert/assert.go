// Package assert turns noisy, delayed observations of the game server into
// pass/fail verdicts.
//
// Numeric checks compare against an explicit tolerance. Qualitative checks
// use the marker echo: a conditional command that prints a unique marker
// only when its condition holds, so the presence of the marker in the reply
// is the boolean answer. Transport and parse errors are always returned as
// they are; only a real mismatch becomes a *Failure.
package assert

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/cavarest/elemental-dragon/internal/log"
	ednet "github.com/cavarest/elemental-dragon/internal/net"
	"github.com/cavarest/elemental-dragon/internal/parse"
	"github.com/cavarest/elemental-dragon/internal/retry"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// Mode controls what the engine does with a failed check.
type Mode int

const (
	// Strict returns every failure to the caller.
	Strict Mode = iota
	// LogOnly records failures and lets the scenario continue.
	LogOnly
)

func (m Mode) String() string {
	if m == LogOnly {
		return "log-only"
	}
	return "strict"
}

// ParseMode accepts "strict" or "log-only".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "log-only", "logonly", "log":
		return LogOnly, nil
	}
	return Strict, fmt.Errorf("unknown assertion mode %q", s)
}

// Failure is an observation that did not meet expectations.
type Failure struct {
	Kind      string
	Message   string
	Actual    float64
	Expected  float64
	Tolerance float64
	Numeric   bool
}

func (f *Failure) Error() string {
	if !f.Numeric {
		return f.Message
	}
	return fmt.Sprintf("%s: actual %v, expected %v ± %v", f.Message, f.Actual, f.Expected, f.Tolerance)
}

// IsFailure reports whether err is or wraps a *Failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

// Observer is told about every verdict.
type Observer interface {
	ObserveAssertion(kind string, passed bool)
}

// Engine evaluates checks against a live server.
type Engine struct {
	cmd    ednet.Commander
	mode   Mode
	logger log.EventLogger
	obs    Observer
}

// Option configures an Engine.
type Option func(*Engine)

func WithMode(m Mode) Option              { return func(e *Engine) { e.mode = m } }
func WithLogger(l log.EventLogger) Option { return func(e *Engine) { e.logger = l } }
func WithObserver(o Observer) Option      { return func(e *Engine) { e.obs = o } }

// New creates an engine that queries through cmd.
func New(cmd ednet.Commander, opts ...Option) *Engine {
	e := &Engine{cmd: cmd}
	for _, o := range opts {
		o(e)
	}
	e.logger = log.OrNop(e.logger)
	return e
}

// Mode returns the engine's failure mode.
func (e *Engine) Mode() Mode { return e.mode }

func (e *Engine) pass(kind, details string) error {
	e.logger.Log(log.NewAssertPassEvent(kind, details))
	if e.obs != nil {
		e.obs.ObserveAssertion(kind, true)
	}
	return nil
}

func (e *Engine) fail(f *Failure) error {
	e.logger.Log(log.NewAssertFailEvent(f.Kind, f.Error()))
	if e.obs != nil {
		e.obs.ObserveAssertion(f.Kind, false)
	}
	if e.mode == LogOnly {
		return nil
	}
	return f
}

// --- Numeric checks ---

// Tolerance is a declarative |Actual-Expected| <= Allowed comparison.
type Tolerance struct {
	Actual   float64
	Expected float64
	Allowed  float64
	Message  string
}

// Holds reports whether the comparison passes. NaN never holds.
func (t Tolerance) Holds() bool {
	return math.Abs(t.Actual-t.Expected) <= t.Allowed
}

// Check evaluates t. A negative tolerance is a usage error, not a failure.
func (e *Engine) Check(t Tolerance) error {
	if t.Allowed < 0 || math.IsNaN(t.Allowed) {
		return fmt.Errorf("assert: invalid tolerance %v", t.Allowed)
	}
	if t.Holds() {
		return e.pass("approx", fmt.Sprintf("%s: %v ≈ %v ± %v", t.Message, t.Actual, t.Expected, t.Allowed))
	}
	return e.fail(&Failure{
		Kind:      "approx",
		Message:   t.Message,
		Actual:    t.Actual,
		Expected:  t.Expected,
		Tolerance: t.Allowed,
		Numeric:   true,
	})
}

// Approx fails iff |actual-expected| > tolerance.
func (e *Engine) Approx(actual, expected, tolerance float64, message string) error {
	return e.Check(Tolerance{Actual: actual, Expected: expected, Allowed: tolerance, Message: message})
}

// GreaterThan fails unless actual > bound.
func (e *Engine) GreaterThan(actual, bound float64, message string) error {
	if actual > bound {
		return e.pass("greater", fmt.Sprintf("%s: %v > %v", message, actual, bound))
	}
	return e.fail(&Failure{Kind: "greater", Message: fmt.Sprintf("%s: expected %v > %v", message, actual, bound)})
}

// LessThan fails unless actual < bound.
func (e *Engine) LessThan(actual, bound float64, message string) error {
	if actual < bound {
		return e.pass("less", fmt.Sprintf("%s: %v < %v", message, actual, bound))
	}
	return e.fail(&Failure{Kind: "less", Message: fmt.Sprintf("%s: expected %v < %v", message, actual, bound)})
}

// Between fails unless lo < actual < hi.
func (e *Engine) Between(actual, lo, hi float64, message string) error {
	if actual > lo && actual < hi {
		return e.pass("between", fmt.Sprintf("%s: %v < %v < %v", message, lo, actual, hi))
	}
	return e.fail(&Failure{Kind: "between", Message: fmt.Sprintf("%s: expected %v < %v < %v", message, lo, actual, hi)})
}

// True fails with message unless ok.
func (e *Engine) True(ok bool, kind, message string) error {
	if ok {
		return e.pass(kind, message)
	}
	return e.fail(&Failure{Kind: kind, Message: message})
}

// --- Marker echo ---

// Condition is a server-side predicate evaluated by conditional execution.
type Condition struct {
	Name      string // marker stem, e.g. "ENTITY" or "EFFECT"
	As        string // optional executor selector
	Negate    bool
	Predicate string // e.g. "entity @e[tag=x]"
}

// Entity holds when an entity tagged tag exists.
func Entity(tag string) Condition {
	return Condition{Name: "ENTITY", Predicate: fmt.Sprintf("entity @e[tag=%s]", tag)}
}

// Effect holds when selector has the status effect. A negative amplifier
// matches any level.
func Effect(selector, effect string, amplifier int) Condition {
	if !strings.Contains(effect, ":") {
		effect = "minecraft:" + effect
	}
	props := "{}"
	if amplifier >= 0 {
		props = fmt.Sprintf("{amplifier:%d}", amplifier)
	}
	return Condition{
		Name: "EFFECT",
		As:   selector,
		Predicate: fmt.Sprintf(`predicate {condition:"minecraft:entity_properties",entity:"this",predicate:{effects:{%q:%s}}}`,
			effect, props),
	}
}

// Not inverts c.
func Not(c Condition) Condition {
	c.Negate = !c.Negate
	return c
}

// Marker is the text printed when c holds.
func (c Condition) marker(suffix string) string {
	name := c.Name
	if name == "" {
		name = "CHECK"
	}
	if c.Negate {
		return name + "_NOT_FOUND_" + suffix
	}
	return name + "_FOUND_" + suffix
}

// Command builds the conditional command that echoes marker.
func (c Condition) Command(marker string) string {
	var sb strings.Builder
	sb.WriteString("execute ")
	if c.As != "" {
		sb.WriteString("as ")
		sb.WriteString(c.As)
		sb.WriteByte(' ')
	}
	if c.Negate {
		sb.WriteString("unless ")
	} else {
		sb.WriteString("if ")
	}
	sb.WriteString(c.Predicate)
	sb.WriteString(" run say ")
	sb.WriteString(marker)
	return sb.String()
}

// Marker evaluates c on the server. Each call uses a fresh marker so an
// echo from an earlier check cannot satisfy a later one.
func (e *Engine) Marker(ctx context.Context, c Condition) (bool, error) {
	marker := c.marker(strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8]))
	command := c.Command(marker)
	res, err := e.cmd.Send(ctx, command)
	if err != nil {
		return false, err
	}
	if parse.Rejected(res.Raw) {
		return false, &parse.RejectedError{Command: command, Text: res.Raw}
	}
	return parse.HasMarker(res.Raw, marker), nil
}

func (e *Engine) expect(ctx context.Context, c Condition, kind, description string) error {
	ok, err := e.Marker(ctx, c)
	if err != nil {
		return err
	}
	if ok {
		return e.pass(kind, description)
	}
	return e.fail(&Failure{Kind: kind, Message: "expected " + description})
}

// EntityExists fails unless an entity tagged tag exists.
func (e *Engine) EntityExists(ctx context.Context, tag string) error {
	return e.expect(ctx, Entity(tag), "entity_exists", fmt.Sprintf("entity [%s] to exist", tag))
}

// EntityNotExists fails if an entity tagged tag exists.
func (e *Engine) EntityNotExists(ctx context.Context, tag string) error {
	return e.expect(ctx, Not(Entity(tag)), "entity_absent", fmt.Sprintf("entity [%s] to be absent", tag))
}

// HasEffect fails unless selector has effect at any level.
func (e *Engine) HasEffect(ctx context.Context, selector, effect string) error {
	return e.expect(ctx, Effect(selector, effect, -1), "effect_present", fmt.Sprintf("%s to have %s", selector, effect))
}

// HasEffectLevel fails unless selector has effect at amplifier.
func (e *Engine) HasEffectLevel(ctx context.Context, selector, effect string, amplifier int) error {
	return e.expect(ctx, Effect(selector, effect, amplifier), "effect_present",
		fmt.Sprintf("%s to have %s at amplifier %d", selector, effect, amplifier))
}

// NotHasEffect fails if selector has effect.
func (e *Engine) NotHasEffect(ctx context.Context, selector, effect string) error {
	return e.expect(ctx, Not(Effect(selector, effect, -1)), "effect_absent", fmt.Sprintf("%s not to have %s", selector, effect))
}

// Health reads selector's health and compares it with expected.
func (e *Engine) Health(ctx context.Context, selector string, expected, tolerance float64) error {
	h, err := ReadHealth(ctx, e.cmd, selector)
	if err != nil {
		return err
	}
	return e.Approx(h, expected, tolerance, selector+" health")
}

// ReadHealth queries selector's Health value.
func ReadHealth(ctx context.Context, cmd ednet.Commander, selector string) (float64, error) {
	res, err := cmd.Send(ctx, fmt.Sprintf("data get entity %s Health", selector))
	if err != nil {
		return 0, err
	}
	if parse.NotFound(res.Raw) {
		return 0, &parse.NotFoundError{Selector: selector, Text: res.Raw}
	}
	return parse.EntityData(res.Raw)
}

// Eventually runs check until it passes or the policy is exhausted. Only
// failures are retried; any other error ends polling at once. Intermediate
// failures are not logged.
func (e *Engine) Eventually(ctx context.Context, p retry.Policy, check func(ctx context.Context, a *Engine) error) error {
	scratch := &Engine{cmd: e.cmd, mode: Strict, logger: log.Nop()}
	var last *Failure
	err := retry.Until(ctx, p, func(ctx context.Context) (bool, error) {
		err := check(ctx, scratch)
		if err == nil {
			return true, nil
		}
		if errors.As(err, &last) {
			return false, nil
		}
		return false, err
	}, func(attempt int, err error) {
		e.logger.Log(log.NewRetryEvent("eventually", attempt, last))
	})
	switch {
	case err == nil:
		return e.pass("eventually", "condition met")
	case errors.Is(err, retry.ErrNotSatisfied) && last != nil:
		return e.fail(last)
	}
	return err
}

// --- Distance ---

// Distance is the Euclidean distance between a and b.
func Distance(a, b world.Position) float64 { return a.DistanceTo(b) }

// HorizontalDistance ignores the vertical axis.
func HorizontalDistance(a, b world.Position) float64 { return a.HorizontalDistanceTo(b) }
