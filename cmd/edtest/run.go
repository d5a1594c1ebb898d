package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/cavarest/elemental-dragon/internal/config"
	"github.com/cavarest/elemental-dragon/internal/journal"
	"github.com/cavarest/elemental-dragon/internal/metrics"
	"github.com/cavarest/elemental-dragon/internal/report"
	"github.com/cavarest/elemental-dragon/internal/scenario"
	"github.com/cavarest/elemental-dragon/internal/stories"
	"github.com/cavarest/elemental-dragon/internal/telemetry"
	"github.com/cavarest/elemental-dragon/internal/web"
)

var errRunFailed = errors.New("one or more scenarios failed")

func runSuite(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	names := fs.String("scenario", "", "comma-separated scenario or story names to run (default all)")
	tags := fs.String("tag", "", "comma-separated tags; run scenarios carrying any of them")
	exclude := fs.String("exclude", "", "comma-separated scenario or story names to skip")
	keep := fs.Bool("keep-entities", false, "do not kill leftover entities after each scenario")
	cfg, err := config.ParseConfig(fs, args)
	if err != nil {
		return err
	}

	include, excluded, tagged := splitList(*names), splitList(*exclude), splitList(*tags)
	if cfg.Suite != "" {
		suite, err := config.LoadSuite(cfg.Suite)
		if err != nil {
			return err
		}
		cfg = suite.Apply(cfg)
		if suite.Name != "" {
			cfg.Suite = suite.Name
		}
		if len(include) == 0 {
			include = suite.Include
		}
		excluded = append(excluded, suite.Exclude...)
		if len(tagged) == 0 {
			tagged = suite.Tags
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	z, events, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = z.Sync() }()

	shutdown, err := telemetry.Setup(ctx, "edtest", cfg.OTelEndpoint)
	if err != nil {
		z.Warn("tracing disabled", zap.Error(err))
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	reg := stories.Registry()
	selected, err := reg.Select(include, excluded, tagged)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no scenarios selected")
	}

	m := metrics.New()
	runner := &scenario.Runner{
		Config:       cfg,
		Logger:       events,
		Observer:     m,
		Asserts:      m,
		Recorder:     m,
		KeepEntities: *keep,
	}

	var j *journal.Journal
	if cfg.Journal != "" {
		j, err = journal.Open(cfg.Journal)
		if err != nil {
			return err
		}
		defer j.Close()
		runner.Journal = j
	}

	if cfg.MetricsAddr != "" {
		var runs web.RunStore
		if j != nil {
			runs = j
		}
		srv := web.NewServer(reg, runs, m.Handler(), z)
		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := srv.ListenAndServe(srvCtx, cfg.MetricsAddr); err != nil {
				z.Error("status server", zap.Error(err))
			}
		}()
	}

	z.Info("starting run", zap.Int("scenarios", len(selected)), zap.String("suite", cfg.Suite))
	sum, runErr := runner.Run(ctx, selected)
	printSummary(sum)

	if cfg.JUnit != "" {
		if err := report.WriteJUnitFile(cfg.JUnit, sum); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if !sum.OK() {
		return errRunFailed
	}
	return nil
}

func printSummary(sum scenario.Summary) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tSTATUS\tDURATION\tMESSAGE")
	for _, r := range sum.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Scenario, r.Status, r.Duration.Round(time.Millisecond), r.Message)
	}
	_ = tw.Flush()
	fmt.Printf("\nrun %s: %d passed, %d failed, %d errors, %d skipped in %s\n",
		sum.RunID,
		sum.Count(scenario.StatusPass), sum.Count(scenario.StatusFail),
		sum.Count(scenario.StatusError), sum.Count(scenario.StatusSkip),
		sum.Duration.Round(time.Millisecond))
}
