package net

import "github.com/cavarest/elemental-dragon/internal/world"

// Message types for the JSON protocol spoken with the player bridge over a
// websocket. Every request carries an ID that the bridge echoes on its
// reply; anything else the bridge pushes is ignored.

// --- Harness → bridge ---

// BridgeRequest is the envelope for all requests to the bridge.
type BridgeRequest struct {
	Type string `json:"type"` // "join", "chat", "telemetry", "entities", "quit"
	ID   int    `json:"id"`

	// For "join"
	Username string `json:"username,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Auth     string `json:"auth,omitempty"`

	// For "chat"
	Line      string `json:"line,omitempty"`
	CollectMS int    `json:"collect_ms,omitempty"`
}

// --- Bridge → harness ---

// BridgeResponse is the envelope for all bridge replies.
type BridgeResponse struct {
	Type string `json:"type"` // "joined", "chat_result", "telemetry", "entities", "bye", "error"
	ID   int    `json:"id"`

	// For "joined"
	Username string `json:"username,omitempty"`

	// For "joined" and "telemetry"
	Position *world.Position `json:"position,omitempty"`
	Health   float64         `json:"health,omitempty"`
	Yaw      float64         `json:"yaw,omitempty"`
	Pitch    float64         `json:"pitch,omitempty"`

	// For "chat_result"
	Messages []string `json:"messages,omitempty"`

	// For "entities"
	Entities []EntityView `json:"entities,omitempty"`

	// For "error"
	Error string `json:"error,omitempty"`
}

// EntityView is one entity the simulated player can see.
type EntityView struct {
	ID       int            `json:"id"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Position world.Position `json:"position"`
}

// Telemetry is the live state of the controlled character.
type Telemetry struct {
	Position world.Position `json:"position"`
	Health   float64        `json:"health"`
	Yaw      float64        `json:"yaw"`
	Pitch    float64        `json:"pitch"`
}

// expectedReply maps a request type to the reply type that answers it.
var expectedReply = map[string]string{
	"join":      "joined",
	"chat":      "chat_result",
	"telemetry": "telemetry",
	"entities":  "entities",
	"quit":      "bye",
}
