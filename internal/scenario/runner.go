package scenario

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cavarest/elemental-dragon/internal/assert"
	"github.com/cavarest/elemental-dragon/internal/config"
	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/journal"
	"github.com/cavarest/elemental-dragon/internal/log"
	ednet "github.com/cavarest/elemental-dragon/internal/net"
	"github.com/cavarest/elemental-dragon/internal/settle"
)

var tracer = otel.Tracer("github.com/cavarest/elemental-dragon/internal/scenario")

// Status is a scenario outcome.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
	StatusSkip  Status = "skip"
)

// Result is the outcome of one scenario.
type Result struct {
	Scenario string
	Story    string
	Status   Status
	Message  string
	Started  time.Time
	Duration time.Duration
}

// Summary is the outcome of one run.
type Summary struct {
	RunID    string
	Suite    string
	Started  time.Time
	Duration time.Duration
	Results  []Result
}

// Count returns how many results have status st.
func (s Summary) Count(st Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == st {
			n++
		}
	}
	return n
}

// OK reports whether nothing failed or errored.
func (s Summary) OK() bool {
	return s.Count(StatusFail) == 0 && s.Count(StatusError) == 0
}

// Recorder receives per-scenario outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveScenario(status string, took time.Duration)
	SetLastRunFailures(n int)
}

// Journal persists run history. *journal.Journal satisfies it.
type Journal interface {
	PutRun(info journal.RunInfo) error
	Append(rec journal.Record) error
}

// Runner executes scenarios strictly one after another.
type Runner struct {
	Config   config.Config
	Dialer   harness.Dialer
	Logger   log.EventLogger
	Observer ednet.CommandObserver
	Asserts  assert.Observer
	Waiter   settle.Waiter
	Recorder Recorder
	Journal  Journal
	// KeepEntities skips the clear-all sweep after each scenario.
	KeepEntities bool
}

// Run executes scenarios in order and returns the summary. The returned
// error is non-nil only when ctx is cancelled mid-run; scenario failures
// are reported through the summary.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (Summary, error) {
	logger := log.OrNop(r.Logger)
	sum := Summary{RunID: journal.NewRunID(), Suite: r.Config.Suite, Started: time.Now()}
	r.journalRun(logger, sum, time.Time{})

	var runErr error
	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		res := r.runOne(ctx, logger, s)
		sum.Results = append(sum.Results, res)
		if r.Journal != nil {
			rec := journal.Record{
				RunID:    sum.RunID,
				Scenario: res.Scenario,
				Story:    res.Story,
				Status:   string(res.Status),
				Message:  res.Message,
				Started:  res.Started,
				Duration: res.Duration,
			}
			if err := r.Journal.Append(rec); err != nil {
				logger.Log(log.NewInfoEvent("journal append: " + err.Error()))
			}
		}
	}

	sum.Duration = time.Since(sum.Started)
	r.journalRun(logger, sum, time.Now())
	if r.Recorder != nil {
		r.Recorder.SetLastRunFailures(sum.Count(StatusFail) + sum.Count(StatusError))
	}
	logger.Log(log.NewInfoEvent(fmt.Sprintf("run %s: %d passed, %d failed, %d errors, %d skipped",
		sum.RunID, sum.Count(StatusPass), sum.Count(StatusFail), sum.Count(StatusError), sum.Count(StatusSkip))))
	return sum, runErr
}

func (r *Runner) journalRun(logger log.EventLogger, sum Summary, finished time.Time) {
	if r.Journal == nil {
		return
	}
	info := journal.RunInfo{
		ID:       sum.RunID,
		Suite:    sum.Suite,
		Started:  sum.Started,
		Finished: finished,
		Passed:   sum.Count(StatusPass),
		Failed:   sum.Count(StatusFail),
		Errored:  sum.Count(StatusError),
		Skipped:  sum.Count(StatusSkip),
	}
	if err := r.Journal.PutRun(info); err != nil {
		logger.Log(log.NewInfoEvent("journal run: " + err.Error()))
	}
}

func (r *Runner) runOne(ctx context.Context, logger log.EventLogger, s Scenario) Result {
	scoped := log.WithScenario(logger, s.Name)
	res := Result{Scenario: s.Name, Story: s.Story, Started: time.Now()}

	ctx, span := tracer.Start(ctx, "scenario "+s.Name, trace.WithAttributes(
		attribute.String("ed.scenario", s.Name),
		attribute.String("ed.story", s.Story),
	))
	defer span.End()

	scoped.Log(log.NewScenarioEvent(log.EventScenarioStart, s.Name, s.Description))

	err := r.execute(ctx, scoped, s)
	res.Duration = time.Since(res.Started)
	res.Status, res.Message = Classify(err)

	span.SetAttributes(attribute.String("ed.status", string(res.Status)))
	if res.Status == StatusFail || res.Status == StatusError {
		span.SetStatus(codes.Error, res.Message)
	}
	scoped.Log(log.NewScenarioEvent(statusEvent(res.Status), s.Name, res.Message))
	if r.Recorder != nil {
		r.Recorder.ObserveScenario(string(res.Status), res.Duration)
	}
	return res
}

func (r *Runner) execute(ctx context.Context, logger log.EventLogger, s Scenario) (err error) {
	if r.Config.Timeouts.Scenario > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Config.Timeouts.Scenario)
		defer cancel()
	}

	opts := harness.Options{
		Logger:         logger,
		Observer:       r.Observer,
		Asserts:        r.Asserts,
		Waiter:         r.Waiter,
		Dialer:         r.Dialer,
		ClearOnDestroy: !r.KeepEntities,
	}
	if s.NeedsPlayer {
		opts.Username = r.Config.Player
	}

	err = harness.With(ctx, r.Config, opts, func(ctx context.Context, h *harness.Context) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
			}
		}()
		return s.Run(ctx, h)
	})
	// Teardown trouble is already in the log and never changes the verdict.
	if harness.IsTeardown(err) {
		logger.Log(log.NewInfoEvent(err.Error()))
		return nil
	}
	return err
}

// Classify maps a scenario's returned error to a status and message.
func Classify(err error) (Status, string) {
	var failure *assert.Failure
	var skip *SkipError
	switch {
	case err == nil:
		return StatusPass, ""
	case errors.As(err, &skip):
		return StatusSkip, skip.Reason
	case errors.As(err, &failure):
		return StatusFail, failure.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return StatusError, "timed out: " + err.Error()
	}
	return StatusError, err.Error()
}

func statusEvent(s Status) log.EventType {
	switch s {
	case StatusPass:
		return log.EventScenarioPass
	case StatusFail:
		return log.EventScenarioFail
	case StatusSkip:
		return log.EventScenarioSkip
	}
	return log.EventScenarioError
}
