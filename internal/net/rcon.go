package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gorcon/rcon"

	"github.com/cavarest/elemental-dragon/internal/log"
)

// RCONConfig describes how to reach the remote console.
type RCONConfig struct {
	Host           string
	Port           int
	Password       string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
	Logger         log.EventLogger
	Observer       CommandObserver
}

// Addr is host:port.
func (c RCONConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RCONClient is one authenticated remote-console session. Commands are sent
// strictly one at a time: the protocol carries no correlation the server
// honours reliably, so a second command is never written before the first
// response is read.
type RCONClient struct {
	cfg RCONConfig

	mu     sync.Mutex
	conn   *rcon.Conn
	resync bool // a call timed out; the next send reconnects before writing
	broken error
	closed bool
}

// DialRCON connects and authenticates. Refused connections and bad
// passwords fail fast with a *ConnectionError.
func DialRCON(ctx context.Context, cfg RCONConfig) (*RCONClient, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	c := &RCONClient{cfg: cfg}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *RCONClient) dial(ctx context.Context) (*rcon.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConnectionError{Backend: BackendRCON, Addr: c.cfg.Addr(), Op: "dial", Err: err}
	}
	timeout := c.cfg.DialTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	conn, err := rcon.Dial(c.cfg.Addr(), c.cfg.Password,
		rcon.SetDialTimeout(timeout),
		rcon.SetDeadline(c.cfg.CommandTimeout),
	)
	if err != nil {
		op := "dial"
		if errors.Is(err, rcon.ErrAuthFailed) {
			op = "auth"
		}
		return nil, &ConnectionError{Backend: BackendRCON, Addr: c.cfg.Addr(), Op: op, Err: err}
	}
	return conn, nil
}

func (c *RCONClient) Backend() string { return BackendRCON }

// Send writes one command and returns the server's verbatim reply.
func (c *RCONClient) Send(ctx context.Context, command string) (CommandResult, error) {
	return instrument(ctx, BackendRCON, command, c.cfg.Logger, c.cfg.Observer, func(ctx context.Context) (CommandResult, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.send(ctx, command)
	})
}

// send performs the round trip. Must be called with mu held.
func (c *RCONClient) send(ctx context.Context, command string) (CommandResult, error) {
	if c.closed {
		return CommandResult{}, &ConnectionError{Backend: BackendRCON, Addr: c.cfg.Addr(), Op: "send", Err: ErrClosed}
	}
	if c.broken != nil {
		return CommandResult{}, &ConnectionError{Backend: BackendRCON, Addr: c.cfg.Addr(), Op: "send", Err: c.broken}
	}
	if err := ctx.Err(); err != nil {
		return CommandResult{}, &TimeoutError{Backend: BackendRCON, Command: command, Err: err}
	}
	if c.resync {
		_ = c.conn.Close()
		conn, err := c.dial(ctx)
		if err != nil {
			c.broken = err
			return CommandResult{}, err
		}
		c.conn = conn
		c.resync = false
	}

	type reply struct {
		body string
		err  error
	}
	conn := c.conn
	done := make(chan reply, 1)
	go func() {
		body, err := conn.Execute(command)
		done <- reply{body, err}
	}()

	var r reply
	select {
	case r = <-done:
	case <-ctx.Done():
		// Unblock Execute, then wait for it so the connection is never shared.
		_ = conn.Close()
		<-done
		c.resync = true
		return CommandResult{}, &TimeoutError{Backend: BackendRCON, Command: command, Err: ctx.Err()}
	}

	if r.err != nil {
		switch {
		case isDeadline(r.err):
			c.resync = true
			return CommandResult{}, &TimeoutError{Backend: BackendRCON, Command: command, After: c.cfg.CommandTimeout, Err: r.err}
		case errors.Is(r.err, rcon.ErrCommandEmpty), errors.Is(r.err, rcon.ErrCommandTooLong):
			return CommandResult{}, fmt.Errorf("rcon %q: %w", command, r.err)
		default:
			c.broken = r.err
			return CommandResult{}, &ConnectionError{Backend: BackendRCON, Addr: c.cfg.Addr(), Op: "send", Err: r.err}
		}
	}
	return CommandResult{Raw: r.body}, nil
}

// Close ends the session. It is safe to call more than once.
func (c *RCONClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
