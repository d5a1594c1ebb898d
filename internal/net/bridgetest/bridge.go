// Package bridgetest runs an in-process player bridge for tests.
package bridgetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	ednet "github.com/cavarest/elemental-dragon/internal/net"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// Bridge is a fake player bridge. Its exported fields may be changed
// between requests; access them through Do when a session is live.
type Bridge struct {
	server *httptest.Server

	mu       sync.Mutex
	Username string
	Position world.Position
	Health   float64
	Entities []ednet.EntityView
	Lines    []string

	// OnChat produces the chat messages returned for a line.
	OnChat func(line string) []string
	// RejectJoin makes join fail with this message when set.
	RejectJoin string
	// Stall delays every reply except join.
	Stall time.Duration
	// Quits counts quit requests.
	Quits int
}

// New starts a bridge listening on a loopback address.
func New() *Bridge {
	b := &Bridge{Position: world.Origin, Health: world.HealthPlayer}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /bridge", b.handle)
	b.server = httptest.NewServer(mux)
	return b
}

// URL is the websocket address of the bridge.
func (b *Bridge) URL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http") + "/bridge"
}

// Close stops the server.
func (b *Bridge) Close() {
	b.server.Close()
}

// Do runs fn with the bridge state locked.
func (b *Bridge) Do(fn func(b *Bridge)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

// Said returns the chat lines received so far.
func (b *Bridge) Said() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.Lines...)
}

func (b *Bridge) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var req ednet.BridgeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			conn.Close(websocket.StatusPolicyViolation, "bad request")
			return
		}
		resp, quit := b.reply(req)
		if req.Type != "join" {
			b.mu.Lock()
			stall := b.Stall
			b.mu.Unlock()
			if stall > 0 {
				select {
				case <-time.After(stall):
				case <-ctx.Done():
					return
				}
			}
		}
		// An unsolicited push the client must skip.
		if req.Type == "chat" {
			push, _ := json.Marshal(ednet.BridgeResponse{Type: "event", Messages: []string{"tick"}})
			if err := conn.Write(ctx, websocket.MessageText, push); err != nil {
				return
			}
		}
		out, _ := json.Marshal(resp)
		if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
			return
		}
		if quit {
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		}
	}
}

func (b *Bridge) reply(req ednet.BridgeRequest) (ednet.BridgeResponse, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	resp := ednet.BridgeResponse{ID: req.ID}
	switch req.Type {
	case "join":
		if b.RejectJoin != "" {
			resp.Type, resp.Error = "error", b.RejectJoin
			return resp, false
		}
		b.Username = req.Username
		pos := b.Position
		resp.Type, resp.Username, resp.Position = "joined", req.Username, &pos
	case "chat":
		b.Lines = append(b.Lines, req.Line)
		resp.Type = "chat_result"
		if b.OnChat != nil {
			resp.Messages = b.OnChat(req.Line)
		}
	case "telemetry":
		pos := b.Position
		resp.Type, resp.Position, resp.Health = "telemetry", &pos, b.Health
	case "entities":
		resp.Type, resp.Entities = "entities", append([]ednet.EntityView(nil), b.Entities...)
	case "quit":
		b.Quits++
		resp.Type = "bye"
		return resp, true
	default:
		resp.Type, resp.Error = "error", "unknown request "+req.Type
	}
	return resp, false
}
