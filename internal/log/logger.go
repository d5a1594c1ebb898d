package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventLogger is the interface for logging harness events.
type EventLogger interface {
	Log(event Event)
	Events() []Event
}

// sequencer numbers events and fills in missing timestamps.
type sequencer struct {
	mu  sync.Mutex
	seq int
	now func() time.Time
}

func (s *sequencer) stamp(event Event) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	event.Seq = s.seq
	if event.Time.IsZero() {
		now := s.now
		if now == nil {
			now = time.Now
		}
		event.Time = now()
	}
	return event
}

// --- MemoryLogger: stores events in memory for test assertions ---

type MemoryLogger struct {
	seq    sequencer
	mu     sync.Mutex
	events []Event
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (l *MemoryLogger) Log(event Event) {
	event = l.seq.stamp(event)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *MemoryLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// EventsOfType returns all events matching the given type.
func (l *MemoryLogger) EventsOfType(t EventType) []Event {
	var result []Event
	for _, e := range l.Events() {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// LastEvent returns the most recent event, or a zero event if none.
func (l *MemoryLogger) LastEvent() Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return Event{}
	}
	return l.events[len(l.events)-1]
}

// Reset drops all stored events.
func (l *MemoryLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

// --- TextLogger: writes human-readable lines to an io.Writer ---

// TextLogger keeps nothing; Events always returns nil.
type TextLogger struct {
	seq sequencer
	w   io.Writer
}

func NewTextLogger(w io.Writer) *TextLogger {
	return &TextLogger{w: w}
}

func (l *TextLogger) Log(event Event) {
	fmt.Fprintln(l.w, FormatEvent(l.seq.stamp(event)))
}

func (l *TextLogger) Events() []Event { return nil }

// --- ZapLogger: forwards events as structured zap entries ---

// ZapLogger keeps nothing; Events always returns nil.
type ZapLogger struct {
	seq sequencer
	z   *zap.Logger
}

func NewZapLogger(z *zap.Logger) *ZapLogger {
	if z == nil {
		z = zap.NewNop()
	}
	return &ZapLogger{z: z}
}

func (l *ZapLogger) Log(event Event) {
	stored := l.seq.stamp(event)
	fields := []zap.Field{
		zap.Int("seq", stored.Seq),
		zap.String("event", stored.Type.String()),
	}
	if stored.Scenario != "" {
		fields = append(fields, zap.String("scenario", stored.Scenario))
	}
	if stored.Backend != "" {
		fields = append(fields, zap.String("backend", stored.Backend))
	}
	if stored.Subject != "" {
		fields = append(fields, zap.String("subject", stored.Subject))
	}
	switch {
	case stored.IsFailure():
		l.z.Warn(stored.Details, fields...)
	case stored.Type == EventCommand || stored.Type == EventResponse || stored.Type == EventSettle:
		l.z.Debug(stored.Details, fields...)
	default:
		l.z.Info(stored.Details, fields...)
	}
}

func (l *ZapLogger) Events() []Event { return nil }

// --- Multi: fans one event out to several loggers ---

type multiLogger struct {
	seq   sequencer
	sinks []EventLogger
}

// Multi returns a logger that forwards every event to each sink. Its Events
// are those of the first sink that retains any.
func Multi(sinks ...EventLogger) EventLogger {
	return &multiLogger{sinks: sinks}
}

func (l *multiLogger) Log(event Event) {
	stored := l.seq.stamp(event)
	for _, s := range l.sinks {
		s.Log(stored)
	}
}

func (l *multiLogger) Events() []Event {
	for _, s := range l.sinks {
		if evs := s.Events(); evs != nil {
			return evs
		}
	}
	return nil
}

// WithScenario stamps every event passed through it with a scenario name.
func WithScenario(inner EventLogger, scenario string) EventLogger {
	return &scenarioLogger{inner: inner, scenario: scenario}
}

type scenarioLogger struct {
	inner    EventLogger
	scenario string
}

func (l *scenarioLogger) Log(event Event) {
	if event.Scenario == "" {
		event.Scenario = l.scenario
	}
	l.inner.Log(event)
}

func (l *scenarioLogger) Events() []Event {
	var out []Event
	for _, e := range l.inner.Events() {
		if e.Scenario == l.scenario {
			out = append(out, e)
		}
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Log(Event)       {}
func (nopLogger) Events() []Event { return nil }

// Nop returns a logger that discards every event.
func Nop() EventLogger { return nopLogger{} }

// OrNop returns l, or Nop when l is nil.
func OrNop(l EventLogger) EventLogger {
	if l == nil {
		return Nop()
	}
	return l
}

// --- Formatting ---

// FormatEvent formats a single event as a human-readable line.
func FormatEvent(e Event) string {
	kind := e.Type.String()
	for len(kind) < 14 {
		kind += " "
	}
	scenario := e.Scenario
	if scenario == "" {
		scenario = "-"
	}
	return fmt.Sprintf("#%-4d %s %s| %s", e.Seq, scenario, kind, e.Details)
}

// FormatAll formats all events as a multi-line string.
func FormatAll(events []Event) string {
	var sb strings.Builder
	for _, e := range events {
		sb.WriteString(FormatEvent(e))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// --- Helper constructors for common events ---

func NewCommandEvent(backend, command string) Event {
	return Event{
		Type:    EventCommand,
		Backend: backend,
		Subject: command,
		Details: fmt.Sprintf("[%s] > %s", backend, command),
	}
}

func NewResponseEvent(backend, command, raw string, took time.Duration) Event {
	return Event{
		Type:    EventResponse,
		Backend: backend,
		Subject: command,
		Details: fmt.Sprintf("[%s] < %q (%s)", backend, truncate(raw, 200), took.Round(time.Millisecond)),
	}
}

func NewCommandErrorEvent(backend, command string, err error) Event {
	return Event{
		Type:    EventCommandError,
		Backend: backend,
		Subject: command,
		Details: fmt.Sprintf("[%s] %s failed: %v", backend, command, err),
	}
}

func NewSettleEvent(kind string, d time.Duration) Event {
	return Event{
		Type:    EventSettle,
		Subject: kind,
		Details: fmt.Sprintf("settle %s %s", kind, d),
	}
}

func NewSpawnEvent(kind, tag string, pos fmt.Stringer, health float64) Event {
	return Event{
		Type:    EventSpawn,
		Subject: tag,
		Details: fmt.Sprintf("spawned %s [%s] at %s with %.1f health", kind, tag, pos, health),
	}
}

func NewRemoveEvent(tag string) Event {
	return Event{
		Type:    EventRemove,
		Subject: tag,
		Details: fmt.Sprintf("removed entities tagged %s", tag),
	}
}

func NewClearEvent() Event {
	return Event{
		Type:    EventClear,
		Details: "cleared all non-player entities",
	}
}

func NewAssertPassEvent(kind, details string) Event {
	return Event{
		Type:    EventAssertPass,
		Subject: kind,
		Details: fmt.Sprintf("✓ %s", details),
	}
}

func NewAssertFailEvent(kind, details string) Event {
	return Event{
		Type:    EventAssertFail,
		Subject: kind,
		Details: fmt.Sprintf("✗ %s", details),
	}
}

func NewRetryEvent(subject string, attempt int, err error) Event {
	return Event{
		Type:    EventRetry,
		Subject: subject,
		Details: fmt.Sprintf("%s attempt %d: %v", subject, attempt, err),
	}
}

func NewChatEvent(player, line string, received int) Event {
	return Event{
		Type:    EventChat,
		Backend: "player",
		Subject: line,
		Details: fmt.Sprintf("%s says %q (%d message(s) back)", player, line, received),
	}
}

func NewContextCreateEvent(player string) Event {
	details := "context ready (rcon)"
	if player != "" {
		details = fmt.Sprintf("context ready (rcon + player %s)", player)
	}
	return Event{Type: EventContextCreate, Subject: player, Details: details}
}

func NewContextDestroyEvent() Event {
	return Event{Type: EventContextDestroy, Details: "context torn down"}
}

func NewTeardownErrorEvent(step string, err error) Event {
	return Event{
		Type:    EventTeardownError,
		Subject: step,
		Details: fmt.Sprintf("teardown %s: %v", step, err),
	}
}

func NewScenarioEvent(t EventType, scenario, details string) Event {
	return Event{Type: t, Scenario: scenario, Subject: scenario, Details: details}
}

func NewInfoEvent(details string) Event {
	return Event{Type: EventInfo, Details: details}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
