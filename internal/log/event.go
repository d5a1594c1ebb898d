package log

import "time"

// EventType enumerates all observable harness events.
type EventType int

const (
	EventCommand EventType = iota
	EventResponse
	EventCommandError
	EventSettle
	EventSpawn
	EventRemove
	EventClear
	EventAssertPass
	EventAssertFail
	EventRetry
	EventChat
	EventContextCreate
	EventContextDestroy
	EventTeardownError
	EventScenarioStart
	EventScenarioPass
	EventScenarioFail
	EventScenarioError
	EventScenarioSkip
	EventInfo
)

func (e EventType) String() string {
	switch e {
	case EventCommand:
		return "Command"
	case EventResponse:
		return "Response"
	case EventCommandError:
		return "CommandError"
	case EventSettle:
		return "Settle"
	case EventSpawn:
		return "Spawn"
	case EventRemove:
		return "Remove"
	case EventClear:
		return "Clear"
	case EventAssertPass:
		return "AssertPass"
	case EventAssertFail:
		return "AssertFail"
	case EventRetry:
		return "Retry"
	case EventChat:
		return "Chat"
	case EventContextCreate:
		return "ContextCreate"
	case EventContextDestroy:
		return "ContextDestroy"
	case EventTeardownError:
		return "TeardownError"
	case EventScenarioStart:
		return "ScenarioStart"
	case EventScenarioPass:
		return "ScenarioPass"
	case EventScenarioFail:
		return "ScenarioFail"
	case EventScenarioError:
		return "ScenarioError"
	case EventScenarioSkip:
		return "ScenarioSkip"
	case EventInfo:
		return "Info"
	default:
		return "Unknown"
	}
}

// Event is a single entry in the harness log.
type Event struct {
	Seq      int
	Time     time.Time
	Scenario string
	Type     EventType
	Backend  string // "rcon" or "player" for transport events
	Subject  string // command text, entity tag, assertion kind
	Details  string
}

// IsFailure reports whether the event records something going wrong.
func (e Event) IsFailure() bool {
	switch e.Type {
	case EventCommandError, EventAssertFail, EventTeardownError, EventScenarioFail, EventScenarioError:
		return true
	}
	return false
}
