package settle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cavarest/elemental-dragon/internal/log"
)

func TestSleeperHonoursCancellation(t *testing.T) {
	s := NewSleeper(Intervals{Spawn: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Settle(ctx, Spawn)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSleeperLogsNamedInterval(t *testing.T) {
	logger := log.NewMemoryLogger()
	s := NewSleeper(Intervals{CommandAck: time.Millisecond}, logger)

	if err := s.Settle(context.Background(), CommandAck); err != nil {
		t.Fatal(err)
	}
	events := logger.EventsOfType(log.EventSettle)
	if len(events) != 1 || events[0].Subject != "ack" {
		t.Errorf("unexpected settle events: %+v", events)
	}
}

func TestDefaults(t *testing.T) {
	iv := Defaults()
	cases := map[Kind]time.Duration{
		Spawn:      100 * time.Millisecond,
		Clear:      200 * time.Millisecond,
		CommandAck: 100 * time.Millisecond,
	}
	for k, want := range cases {
		if got := iv.For(k); got != want {
			t.Errorf("%s: got %s, want %s", k, got, want)
		}
	}
}

func TestRecorderCounts(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	_ = r.Settle(ctx, Spawn)
	_ = r.Settle(ctx, Spawn)
	_ = r.Settle(ctx, Clear)
	_ = r.Wait(ctx, time.Second)

	if r.Count(Spawn) != 2 || r.Count(Clear) != 1 || len(r.Windows) != 1 {
		t.Errorf("unexpected recorder state: %+v", r)
	}
}
