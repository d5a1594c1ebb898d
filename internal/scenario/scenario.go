// Package scenario defines verification scenarios and runs them one at a
// time against a fresh harness context each.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/cavarest/elemental-dragon/internal/harness"
)

// Scenario is one named verification. Run receives a fully created context
// and returns nil on success, an *assert.Failure for a failed check, a Skip
// error, or anything else for an infrastructure error.
type Scenario struct {
	Name        string
	Story       string
	Description string
	Tags        []string
	// NeedsPlayer attaches the configured test player before Run.
	NeedsPlayer bool
	Run         func(ctx context.Context, h *harness.Context) error
}

// HasTag reports whether s carries tag.
func (s Scenario) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// SkipError marks a scenario that deliberately did not run to completion.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

// Skip returns an error that makes the runner record a skip.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// Skipf is Skip with formatting.
func Skipf(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// IsSkip reports whether err is or wraps a *SkipError.
func IsSkip(err error) bool {
	var s *SkipError
	return errors.As(err, &s)
}

// Registry holds scenarios in registration order.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Scenario
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Scenario)}
}

// Register adds s. Names must be unique and Run must be set.
func (r *Registry) Register(s Scenario) error {
	if s.Name == "" {
		return errors.New("scenario name is required")
	}
	if s.Run == nil {
		return fmt.Errorf("scenario %s has no Run function", s.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[s.Name]; dup {
		return fmt.Errorf("scenario %s already registered", s.Name)
	}
	r.byName[s.Name] = s
	r.order = append(r.order, s.Name)
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(scenarios ...Scenario) {
	for _, s := range scenarios {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// All returns every scenario in registration order.
func (r *Registry) All() []Scenario {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Scenario, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Lookup finds a scenario by name.
func (r *Registry) Lookup(name string) (Scenario, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// Stories returns the distinct story names, sorted.
func (r *Registry) Stories() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range r.All() {
		if !seen[s.Story] {
			seen[s.Story] = true
			out = append(out, s.Story)
		}
	}
	sort.Strings(out)
	return out
}

// Select filters the registry. A non-empty include keeps only the named
// scenarios or stories; exclude drops names or stories; tags keeps
// scenarios carrying at least one of them. Unknown include names are an
// error so typos do not silently run nothing.
func (r *Registry) Select(include, exclude, tags []string) ([]Scenario, error) {
	all := r.All()
	known := map[string]bool{}
	for _, s := range all {
		known[s.Name] = true
		known[s.Story] = true
	}
	for _, name := range include {
		if !known[name] {
			return nil, fmt.Errorf("unknown scenario or story %q", name)
		}
	}

	var out []Scenario
	for _, s := range all {
		if len(include) > 0 && !slices.Contains(include, s.Name) && !slices.Contains(include, s.Story) {
			continue
		}
		if slices.Contains(exclude, s.Name) || slices.Contains(exclude, s.Story) {
			continue
		}
		if len(tags) > 0 && !slices.ContainsFunc(tags, s.HasTag) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
