package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cavarest/elemental-dragon/internal/config"
	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/log"
	"github.com/cavarest/elemental-dragon/internal/settle"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// ToolResponse is the JSON envelope returned by all MCP tools.
type ToolResponse struct {
	Events    []EventView    `json:"events"`
	Connected bool           `json:"connected"`
	Player    string         `json:"player,omitempty"`
	Result    string         `json:"result,omitempty"`
	Entity    *EntityView    `json:"entity,omitempty"`
	Scenarios []ScenarioView `json:"scenarios,omitempty"`
	Outcome   *OutcomeView   `json:"outcome,omitempty"`
}

// EventView is one harness event as presented to the agent.
type EventView struct {
	Seq     int    `json:"seq"`
	Type    string `json:"type"`
	Backend string `json:"backend,omitempty"`
	Subject string `json:"subject,omitempty"`
	Details string `json:"details,omitempty"`
}

// EntityView is a tagged entity's last known state.
type EntityView struct {
	Kind     string          `json:"kind,omitempty"`
	Tag      string          `json:"tag"`
	Health   *float64        `json:"health,omitempty"`
	Position *world.Position `json:"position,omitempty"`
}

// ScenarioView describes a registered scenario.
type ScenarioView struct {
	Name        string   `json:"name"`
	Story       string   `json:"story"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	NeedsPlayer bool     `json:"needs_player"`
}

// OutcomeView is the result of one scenario run.
type OutcomeView struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration"`
}

// Session holds the one live harness context an agent works against.
type Session struct {
	h      *harness.Context
	events *log.MemoryLogger

	mu sync.Mutex
}

// NewSession connects the console and, when username is non-empty,
// attaches a simulated player. Entities spawned through the session are
// removed when it is closed.
func NewSession(ctx context.Context, cfg config.Config, dialer harness.Dialer, waiter settle.Waiter, sink log.EventLogger, username string) (*Session, error) {
	events := log.NewMemoryLogger()
	logger := log.EventLogger(events)
	if sink != nil {
		logger = log.Multi(events, sink)
	}
	h, err := harness.Create(ctx, cfg, harness.Options{
		Username: username,
		Logger:   logger,
		Dialer:   dialer,
		Waiter:   waiter,
	})
	if err != nil {
		return nil, err
	}
	return &Session{h: h, events: events}, nil
}

// Context returns the underlying harness context.
func (s *Session) Context() *harness.Context { return s.h }

// drainEvents returns the events logged since the previous drain.
func (s *Session) drainEvents() []EventView {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := s.events.Events()
	s.events.Reset()
	return eventViews(evs)
}

// Close destroys the harness context.
func (s *Session) Close(ctx context.Context) error {
	return s.h.Destroy(ctx)
}

func eventViews(evs []log.Event) []EventView {
	out := make([]EventView, 0, len(evs))
	for _, e := range evs {
		out = append(out, EventView{
			Seq:     e.Seq,
			Type:    e.Type.String(),
			Backend: e.Backend,
			Subject: e.Subject,
			Details: e.Details,
		})
	}
	return out
}

func outcomeView(runID, name, status, message string, took time.Duration) *OutcomeView {
	return &OutcomeView{
		RunID:    runID,
		Scenario: name,
		Status:   status,
		Message:  message,
		Duration: took.Round(time.Millisecond).String(),
	}
}

func respondJSON(resp *ToolResponse) string {
	if resp.Events == nil {
		resp.Events = []EventView{}
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal error: %v"}`, err)
	}
	return string(data)
}
