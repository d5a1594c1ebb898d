// Package net holds the two transports that reach the game server: the
// remote console and a simulated player session. Both satisfy Commander so
// callers can issue command-equivalent instructions without caring which
// one they hold.
package net

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cavarest/elemental-dragon/internal/log"
)

// Backend names.
const (
	BackendRCON   = "rcon"
	BackendPlayer = "player"
)

// CommandResult is the outcome of one round trip.
type CommandResult struct {
	Command  string
	Backend  string
	Raw      string   // verbatim response text, including server error text
	Echo     []string // per-line chat echo, player backend only
	Duration time.Duration
}

// Commander sends one command and waits for its single response.
type Commander interface {
	Send(ctx context.Context, command string) (CommandResult, error)
	Backend() string
}

// CommandObserver is told about every finished round trip.
type CommandObserver interface {
	ObserveCommand(backend string, took time.Duration, err error)
}

var tracer = otel.Tracer("github.com/cavarest/elemental-dragon/internal/net")

// verb is the first word of a command, used as a low-cardinality label.
func verb(command string) string {
	command = strings.TrimPrefix(strings.TrimSpace(command), "/")
	if i := strings.IndexByte(command, ' '); i >= 0 {
		return command[:i]
	}
	return command
}

// instrument wraps a round trip with a span, log events and the observer.
func instrument(ctx context.Context, backend, command string, logger log.EventLogger, obs CommandObserver,
	fn func(ctx context.Context) (CommandResult, error)) (CommandResult, error) {
	ctx, span := tracer.Start(ctx, backend+".send", trace.WithAttributes(
		attribute.String("ed.backend", backend),
		attribute.String("ed.command.verb", verb(command)),
	))
	defer span.End()

	if logger != nil {
		logger.Log(log.NewCommandEvent(backend, command))
	}
	start := time.Now()
	res, err := fn(ctx)
	took := time.Since(start)
	res.Command = command
	res.Backend = backend
	res.Duration = took

	if obs != nil {
		obs.ObserveCommand(backend, took, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if logger != nil {
			logger.Log(log.NewCommandErrorEvent(backend, command, err))
		}
		return res, err
	}
	if logger != nil {
		logger.Log(log.NewResponseEvent(backend, command, res.Raw, took))
	}
	return res, nil
}
