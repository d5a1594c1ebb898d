// Package settle names the fixed waits the harness takes after mutating
// world state. The server acknowledges a command before its effect is
// observable, so every mutation that a later query depends on is followed
// by one of these intervals.
package settle

import (
	"context"
	"sync"
	"time"

	"github.com/cavarest/elemental-dragon/internal/log"
)

// Kind identifies one named settle interval.
type Kind string

const (
	// Spawn lets a summoned entity become queryable by tag.
	Spawn Kind = "spawn"
	// Clear lets a bulk kill finish before the next scenario spawns.
	Clear Kind = "clear"
	// CommandAck follows teleport, give and execute-as commands.
	CommandAck Kind = "ack"
	// Effect lets a status effect propagate before it is checked.
	Effect Kind = "effect"
	// Setup follows world preparation at the start of a scenario.
	Setup Kind = "setup"
)

// Intervals holds the duration of each named settle.
type Intervals struct {
	Spawn      time.Duration `env:"ED_SETTLE_SPAWN" envDefault:"100ms" yaml:"spawn"`
	Clear      time.Duration `env:"ED_SETTLE_CLEAR" envDefault:"200ms" yaml:"clear"`
	CommandAck time.Duration `env:"ED_SETTLE_ACK" envDefault:"100ms" yaml:"ack"`
	Effect     time.Duration `env:"ED_SETTLE_EFFECT" envDefault:"500ms" yaml:"effect"`
	Setup      time.Duration `env:"ED_SETTLE_SETUP" envDefault:"500ms" yaml:"setup"`
}

// Defaults returns the intervals used when nothing is configured.
func Defaults() Intervals {
	return Intervals{
		Spawn:      100 * time.Millisecond,
		Clear:      200 * time.Millisecond,
		CommandAck: 100 * time.Millisecond,
		Effect:     500 * time.Millisecond,
		Setup:      500 * time.Millisecond,
	}
}

// For returns the duration configured for k.
func (iv Intervals) For(k Kind) time.Duration {
	switch k {
	case Spawn:
		return iv.Spawn
	case Clear:
		return iv.Clear
	case CommandAck:
		return iv.CommandAck
	case Effect:
		return iv.Effect
	case Setup:
		return iv.Setup
	}
	return 0
}

// Waiter blocks for a named settle interval or an explicit window.
type Waiter interface {
	Settle(ctx context.Context, k Kind) error
	Wait(ctx context.Context, d time.Duration) error
}

// Sleeper waits on the wall clock.
type Sleeper struct {
	Intervals Intervals
	Logger    log.EventLogger
}

// NewSleeper creates a wall-clock waiter.
func NewSleeper(iv Intervals, logger log.EventLogger) *Sleeper {
	return &Sleeper{Intervals: iv, Logger: logger}
}

func (s *Sleeper) Settle(ctx context.Context, k Kind) error {
	d := s.Intervals.For(k)
	if s.Logger != nil {
		s.Logger.Log(log.NewSettleEvent(string(k), d))
	}
	return sleep(ctx, d)
}

func (s *Sleeper) Wait(ctx context.Context, d time.Duration) error {
	if s.Logger != nil {
		s.Logger.Log(log.NewSettleEvent("window", d))
	}
	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Recorder is a Waiter that returns immediately and remembers what it was
// asked to wait for.
type Recorder struct {
	mu      sync.Mutex
	Kinds   []Kind
	Windows []time.Duration
}

func (r *Recorder) Settle(ctx context.Context, k Kind) error {
	r.mu.Lock()
	r.Kinds = append(r.Kinds, k)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *Recorder) Wait(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.Windows = append(r.Windows, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Count returns how many times k was settled.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.Kinds {
		if got == k {
			n++
		}
	}
	return n
}
