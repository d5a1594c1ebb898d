package scenario

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	edassert "github.com/cavarest/elemental-dragon/internal/assert"
	"github.com/cavarest/elemental-dragon/internal/config"
	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/harness/harnesstest"
	"github.com/cavarest/elemental-dragon/internal/journal"
	"github.com/cavarest/elemental-dragon/internal/log"
	"github.com/cavarest/elemental-dragon/internal/metrics"
	"github.com/cavarest/elemental-dragon/internal/settle"
	"github.com/cavarest/elemental-dragon/internal/testkit"
	"github.com/cavarest/elemental-dragon/internal/world"
)

var assertFailure = edassert.Failure{Kind: "health", Message: "health did not drop"}

func noop(context.Context, *harness.Context) error { return nil }

func sampleRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(Scenario{Name: "seed", Story: "server", Tags: []string{"smoke"}, Run: noop}))
	require.NoError(t, r.Register(Scenario{Name: "list", Story: "server", Run: noop}))
	require.NoError(t, r.Register(Scenario{Name: "wrath", Story: "burning", Tags: []string{"damage", "smoke"}, NeedsPlayer: true, Run: noop}))
	return r
}

func names(ss []Scenario) []string {
	var out []string
	for _, s := range ss {
		out = append(out, s.Name)
	}
	return out
}

func TestRegistry(t *testing.T) {
	r := sampleRegistry(t)

	assert.Equal(t, []string{"seed", "list", "wrath"}, names(r.All()))
	assert.Equal(t, []string{"burning", "server"}, r.Stories())

	_, ok := r.Lookup("wrath")
	assert.True(t, ok)

	assert.ErrorContains(t, r.Register(Scenario{Name: "seed", Run: noop}), "already registered")
	assert.Error(t, r.Register(Scenario{Name: "norun"}))
	assert.Error(t, r.Register(Scenario{Run: noop}))
}

func TestSelect(t *testing.T) {
	r := sampleRegistry(t)
	tests := []struct {
		name             string
		include, exclude []string
		tags             []string
		want             []string
	}{
		{"everything", nil, nil, nil, []string{"seed", "list", "wrath"}},
		{"by story", []string{"server"}, nil, nil, []string{"seed", "list"}},
		{"by name", []string{"wrath"}, nil, nil, []string{"wrath"}},
		{"exclude", nil, []string{"list"}, nil, []string{"seed", "wrath"}},
		{"tags", nil, nil, []string{"smoke"}, []string{"seed", "wrath"}},
		{"story and tag", []string{"server"}, nil, []string{"smoke"}, []string{"seed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Select(tt.include, tt.exclude, tt.tags)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}

	_, err := r.Select([]string{"typo"}, nil, nil)
	assert.ErrorContains(t, err, "typo")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, StatusPass},
		{Skip("too close"), StatusSkip},
		{&assertFailure, StatusFail},
		{errors.Join(errors.New("ctx"), &assertFailure), StatusFail},
		{context.DeadlineExceeded, StatusError},
		{errors.New("connection refused"), StatusError},
	}
	for _, tt := range tests {
		got, _ := Classify(tt.err)
		assert.Equal(t, tt.want, got, "%v", tt.err)
	}
	_, msg := Classify(Skipf("spawn %d blocks away", 3))
	assert.Equal(t, "spawn 3 blocks away", msg)
}

type recorder struct {
	statuses []string
	failures int
}

func (r *recorder) ObserveScenario(status string, took time.Duration) {
	r.statuses = append(r.statuses, status)
}
func (r *recorder) SetLastRunFailures(n int) { r.failures = n }

func testRunner(w *testkit.World) (*Runner, *harnesstest.Dialer, *log.MemoryLogger) {
	d := harnesstest.New(w)
	logger := log.NewMemoryLogger()
	cfg := config.Default()
	cfg.Timeouts.Scenario = time.Second
	return &Runner{Config: cfg, Dialer: d, Logger: logger, Waiter: &settle.Recorder{}}, d, logger
}

func TestRunnerOutcomes(t *testing.T) {
	w := testkit.NewWorld()
	r, d, logger := testRunner(w)
	rec := &recorder{}
	r.Recorder = rec

	scenarios := []Scenario{
		{Name: "passes", Run: func(ctx context.Context, h *harness.Context) error {
			_, err := h.Spawn(ctx, "zombie", world.North, "p", 20)
			if err != nil {
				return err
			}
			return h.Assert.EntityExists(ctx, "p")
		}},
		{Name: "fails", Run: func(ctx context.Context, h *harness.Context) error {
			return h.Assert.EntityExists(ctx, "missing")
		}},
		{Name: "skips", Run: func(ctx context.Context, h *harness.Context) error {
			return Skip("not applicable")
		}},
		{Name: "errors", Run: func(ctx context.Context, h *harness.Context) error {
			return errors.New("boom")
		}},
		{Name: "panics", Run: func(ctx context.Context, h *harness.Context) error {
			panic("oops")
		}},
		{Name: "player", NeedsPlayer: true, Run: func(ctx context.Context, h *harness.Context) error {
			p, err := h.RequirePlayer()
			if err != nil {
				return err
			}
			return h.Assert.True(p.Username() == "TestPlayer", "player", "player attached")
		}},
	}

	sum, err := r.Run(context.Background(), scenarios)
	require.NoError(t, err)
	require.Len(t, sum.Results, 6)

	var got []Status
	for _, res := range sum.Results {
		got = append(got, res.Status)
	}
	assert.Equal(t, []Status{StatusPass, StatusFail, StatusSkip, StatusError, StatusError, StatusPass}, got)
	assert.Contains(t, sum.Results[4].Message, "panic: oops")
	assert.False(t, sum.OK())
	assert.NotEmpty(t, sum.RunID)

	// Every context was released and spawned entities cleaned up.
	assert.Equal(t, 6, d.ConsoleDials())
	assert.True(t, d.Balanced())
	assert.Equal(t, 1, d.PlayerCloses())
	assert.Equal(t, 0, w.Count())

	assert.Equal(t, []string{"pass", "fail", "skip", "error", "error", "pass"}, rec.statuses)
	assert.Equal(t, 3, rec.failures)
	assert.Len(t, logger.EventsOfType(log.EventScenarioStart), 6)
	assert.Len(t, logger.EventsOfType(log.EventScenarioFail), 1)
}

func TestRunnerConnectionFailureIsError(t *testing.T) {
	r, d, _ := testRunner(testkit.NewWorld())
	d.ConsoleErr = errors.New("connection refused")

	sum, err := r.Run(context.Background(), []Scenario{{Name: "x", Run: noop}})
	require.NoError(t, err)
	assert.Equal(t, StatusError, sum.Results[0].Status)
	assert.Contains(t, sum.Results[0].Message, "connection refused")
}

func TestRunnerTeardownErrorKeepsVerdict(t *testing.T) {
	w := testkit.NewWorld()
	r, d, logger := testRunner(w)
	d.CloseErr = errors.New("console close noise")

	sum, err := r.Run(context.Background(), []Scenario{
		{Name: "passes", Run: func(ctx context.Context, h *harness.Context) error {
			_, err := h.Spawn(ctx, "zombie", world.North, "p", 20)
			return err
		}},
		{Name: "fails", Run: func(ctx context.Context, h *harness.Context) error {
			return h.Assert.EntityExists(ctx, "missing")
		}},
	})
	require.NoError(t, err)
	require.Len(t, sum.Results, 2)

	assert.Equal(t, StatusPass, sum.Results[0].Status)
	assert.Empty(t, sum.Results[0].Message)
	assert.Equal(t, StatusFail, sum.Results[1].Status)
	assert.True(t, d.Balanced())
	assert.Equal(t, 0, w.Count())
	assert.Len(t, logger.EventsOfType(log.EventTeardownError), 2)
}

func TestRunnerScenarioTimeout(t *testing.T) {
	r, _, _ := testRunner(testkit.NewWorld())
	r.Config.Timeouts.Scenario = 20 * time.Millisecond

	sum, err := r.Run(context.Background(), []Scenario{{Name: "hangs", Run: func(ctx context.Context, h *harness.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}})
	require.NoError(t, err)
	assert.Equal(t, StatusError, sum.Results[0].Status)
	assert.Contains(t, sum.Results[0].Message, "timed out")
}

func TestRunnerStopsOnCancel(t *testing.T) {
	r, _, _ := testRunner(testkit.NewWorld())
	ctx, cancel := context.WithCancel(context.Background())

	sum, err := r.Run(ctx, []Scenario{
		{Name: "first", Run: func(context.Context, *harness.Context) error { cancel(); return nil }},
		{Name: "second", Run: noop},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sum.Results, 1)
}

func TestRunnerWritesJournalAndMetrics(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer j.Close()

	r, _, _ := testRunner(testkit.NewWorld())
	m := metrics.New()
	r.Journal = j
	r.Recorder = m
	r.Observer = m
	r.Asserts = m

	sum, err := r.Run(context.Background(), []Scenario{
		{Name: "a", Story: "s", Run: noop},
		{Name: "b", Story: "s", Run: func(ctx context.Context, h *harness.Context) error {
			return h.Assert.Approx(1, 2, 0.5, "off by one")
		}},
	})
	require.NoError(t, err)

	info, recs, err := j.Run(sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Passed)
	assert.Equal(t, 1, info.Failed)
	assert.False(t, info.Finished.IsZero())
	require.Len(t, recs, 2)
	assert.Equal(t, "fail", recs[1].Status)
	assert.Contains(t, recs[1].Message, "off by one")
}
