package net

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// ErrClosed is wrapped by ConnectionError once a session has been closed.
var ErrClosed = errors.New("session closed")

// ConnectionError means a session could not be established or was lost.
type ConnectionError struct {
	Backend string
	Addr    string
	Op      string // "dial", "auth", "join", "send"
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Backend, e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError means no response arrived within the call's window.
type TimeoutError struct {
	Backend string
	Command string
	After   time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %q: no response within %s", e.Backend, e.Command, e.After)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// BridgeError is an error reply from the player bridge for one request.
type BridgeError struct {
	Request string
	Message string
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("player bridge %s: %s", e.Request, e.Message)
}

// IsConnection reports whether err is or wraps a *ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsTimeout reports whether err is or wraps a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// isDeadline reports whether a low-level error was a deadline expiry.
func isDeadline(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "i/o timeout")
}
