package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/cavarest/elemental-dragon/internal/log"
	"github.com/cavarest/elemental-dragon/internal/world"
)

// PlayerConfig describes the bridge and the character it should join as.
type PlayerConfig struct {
	URL            string // ws:// address of the player bridge
	Username       string
	GameHost       string
	GamePort       int
	Auth           string
	JoinTimeout    time.Duration
	CommandTimeout time.Duration
	ChatWindow     time.Duration // how long the bridge gathers chat after a line
	Logger         log.EventLogger
	Observer       CommandObserver
}

// PlayerSession is a joined, simulated player. It speaks chat lines and
// reports live telemetry for its own character.
//
// The websocket library closes the connection when a read's context
// expires, so unlike the remote console a timed-out player call leaves the
// session unusable; later calls fail with a *ConnectionError.
type PlayerSession struct {
	cfg      PlayerConfig
	conn     *websocket.Conn
	username string

	mu     sync.Mutex
	nextID int
	broken error
	closed bool
}

// DialPlayer connects to the bridge and waits until the character has
// spawned in the world.
func DialPlayer(ctx context.Context, cfg PlayerConfig) (*PlayerSession, error) {
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = 30 * time.Second
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	if cfg.ChatWindow <= 0 {
		cfg.ChatWindow = 500 * time.Millisecond
	}
	if cfg.Auth == "" {
		cfg.Auth = "offline"
	}

	jctx, cancel := context.WithTimeout(ctx, cfg.JoinTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(jctx, cfg.URL, nil)
	if err != nil {
		return nil, &ConnectionError{Backend: BackendPlayer, Addr: cfg.URL, Op: "dial", Err: err}
	}

	s := &PlayerSession{cfg: cfg, conn: conn, username: cfg.Username}
	resp, err := s.roundTrip(jctx, BridgeRequest{
		Type:     "join",
		Username: cfg.Username,
		Host:     cfg.GameHost,
		Port:     cfg.GamePort,
		Auth:     cfg.Auth,
	})
	if err != nil {
		conn.CloseNow()
		var be *BridgeError
		if errors.As(err, &be) || IsTimeout(err) {
			return nil, &ConnectionError{Backend: BackendPlayer, Addr: cfg.URL, Op: "join", Err: err}
		}
		return nil, err
	}
	if resp.Username != "" {
		s.username = resp.Username
	}
	return s, nil
}

func (s *PlayerSession) Backend() string { return BackendPlayer }

// Username is the in-game name of the controlled character.
func (s *PlayerSession) Username() string { return s.username }

// Send issues a command as if the player typed it in chat.
func (s *PlayerSession) Send(ctx context.Context, command string) (CommandResult, error) {
	return s.Chat(ctx, "/"+strings.TrimPrefix(command, "/"))
}

// Chat speaks one line and returns the chat messages the player received
// during the collection window.
func (s *PlayerSession) Chat(ctx context.Context, line string) (CommandResult, error) {
	return instrument(ctx, BackendPlayer, line, s.cfg.Logger, s.cfg.Observer, func(ctx context.Context) (CommandResult, error) {
		resp, err := s.call(ctx, BridgeRequest{
			Type:      "chat",
			Line:      line,
			CollectMS: int(s.cfg.ChatWindow / time.Millisecond),
		})
		if err != nil {
			return CommandResult{}, err
		}
		if s.cfg.Logger != nil {
			s.cfg.Logger.Log(log.NewChatEvent(s.username, line, len(resp.Messages)))
		}
		return CommandResult{Raw: strings.Join(resp.Messages, "\n"), Echo: resp.Messages}, nil
	})
}

// Telemetry polls the character's live state.
func (s *PlayerSession) Telemetry(ctx context.Context) (Telemetry, error) {
	resp, err := s.call(ctx, BridgeRequest{Type: "telemetry"})
	if err != nil {
		return Telemetry{}, err
	}
	if resp.Position == nil {
		return Telemetry{}, &BridgeError{Request: "telemetry", Message: "reply carried no position"}
	}
	return Telemetry{Position: *resp.Position, Health: resp.Health, Yaw: resp.Yaw, Pitch: resp.Pitch}, nil
}

// Position is the character's current position.
func (s *PlayerSession) Position(ctx context.Context) (world.Position, error) {
	t, err := s.Telemetry(ctx)
	if err != nil {
		return world.Position{}, err
	}
	return t.Position, nil
}

// Entities lists the entities the character can currently see.
func (s *PlayerSession) Entities(ctx context.Context) ([]EntityView, error) {
	resp, err := s.call(ctx, BridgeRequest{Type: "entities"})
	if err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// Close asks the bridge to disconnect the character, then closes the
// websocket. It is safe to call more than once.
func (s *PlayerSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	broken := s.broken
	s.mu.Unlock()

	var quitErr error
	if broken == nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CommandTimeout)
		_, quitErr = s.call(ctx, BridgeRequest{Type: "quit"})
		cancel()
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	// The bridge may already have closed its side after "bye".
	_ = s.conn.Close(websocket.StatusNormalClosure, "session ended")
	if quitErr != nil {
		return fmt.Errorf("quit player session: %w", quitErr)
	}
	return nil
}

// call applies the per-command timeout and serializes access.
func (s *PlayerSession) call(ctx context.Context, req BridgeRequest) (BridgeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()
	return s.roundTrip(ctx, req)
}

func (s *PlayerSession) roundTrip(ctx context.Context, req BridgeRequest) (BridgeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return BridgeResponse{}, &ConnectionError{Backend: BackendPlayer, Addr: s.cfg.URL, Op: "send", Err: ErrClosed}
	}
	if s.broken != nil {
		return BridgeResponse{}, &ConnectionError{Backend: BackendPlayer, Addr: s.cfg.URL, Op: "send", Err: s.broken}
	}

	s.nextID++
	req.ID = s.nextID
	if err := s.send(ctx, req); err != nil {
		return BridgeResponse{}, s.fail(req, err)
	}
	for {
		resp, err := s.recv(ctx)
		if err != nil {
			return BridgeResponse{}, s.fail(req, err)
		}
		if resp.ID != req.ID {
			continue
		}
		if resp.Type == "error" {
			return BridgeResponse{}, &BridgeError{Request: req.Type, Message: resp.Error}
		}
		if want := expectedReply[req.Type]; want != "" && resp.Type != want {
			return BridgeResponse{}, &BridgeError{Request: req.Type, Message: fmt.Sprintf("unexpected reply %q", resp.Type)}
		}
		return resp, nil
	}
}

// send writes a request. Must be called with mu held.
func (s *PlayerSession) send(ctx context.Context, req BridgeRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", req.Type, err)
	}
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// recv reads one reply. Must be called with mu held.
func (s *PlayerSession) recv(ctx context.Context) (BridgeResponse, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		return BridgeResponse{}, err
	}
	var resp BridgeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return BridgeResponse{}, fmt.Errorf("decode bridge reply: %w", err)
	}
	return resp, nil
}

// fail classifies a wire error and marks the session broken. Must be called
// with mu held.
func (s *PlayerSession) fail(req BridgeRequest, err error) error {
	s.broken = err
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || isDeadline(err) {
		return &TimeoutError{Backend: BackendPlayer, Command: strings.TrimSpace(req.Type + " " + req.Line), After: s.cfg.CommandTimeout, Err: err}
	}
	return &ConnectionError{Backend: BackendPlayer, Addr: s.cfg.URL, Op: "send", Err: err}
}
