package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cavarest/elemental-dragon/internal/config"
	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/journal"
	"github.com/cavarest/elemental-dragon/internal/log"
	"github.com/cavarest/elemental-dragon/internal/stories"
	"github.com/cavarest/elemental-dragon/internal/web"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runSuite(ctx, os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "history":
		err = runHistory(os.Args[2:])
	case "send":
		err = runSend(ctx, os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  edtest run     [--scenario NAME,...] [--tag TAG,...] [--suite FILE] [--junit FILE] [--journal FILE]")
	fmt.Println("  edtest list    [--tag TAG,...]")
	fmt.Println("  edtest history [--journal FILE] [--limit N] SCENARIO")
	fmt.Println("  edtest send    COMMAND...")
	fmt.Println("  edtest serve   [--metrics-addr ADDR] [--journal FILE]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run      Run verification scenarios against the server")
	fmt.Println("  list     List registered scenarios")
	fmt.Println("  history  Show recent outcomes of one scenario")
	fmt.Println("  send     Send one command over the remote console and print the reply")
	fmt.Println("  serve    Serve scenarios and run history over HTTP (metrics come from run --metrics-addr)")
	fmt.Println()
	fmt.Println("Connection settings come from RCON_*, MC_* and ED_* environment variables; flags override them.")
}

// newLogger builds the process logger: structured zap entries on stderr,
// plus a plain event transcript on stdout when verbose.
func newLogger(cfg config.Config) (*zap.Logger, log.EventLogger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	z, err := zc.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	events := log.EventLogger(log.NewZapLogger(z))
	if cfg.Verbose {
		events = log.Multi(events, log.NewTextLogger(os.Stdout))
	}
	return z, events, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	tags := fs.String("tag", "", "comma-separated tags to filter by")
	if err := fs.Parse(args); err != nil {
		return err
	}

	selected, err := stories.Registry().Select(nil, nil, splitList(*tags))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTORY\tTAGS\tDESCRIPTION")
	for _, s := range selected {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Story, strings.Join(s.Tags, ","), s.Description)
	}
	return tw.Flush()
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	path := fs.String("journal", config.Default().Journal, "path to run journal")
	limit := fs.Int("limit", 20, "number of records to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("history needs exactly one scenario name")
	}

	j, err := journal.Open(*path)
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.History(fs.Arg(0), *limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Printf("no recorded runs of %s\n", fs.Arg(0))
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tDURATION\tRUN\tMESSAGE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Started.Format("2006-01-02 15:04:05"), r.Status, r.Duration.Round(time.Millisecond), r.RunID, r.Message)
	}
	return tw.Flush()
}

func runSend(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	cfg, err := config.ParseConfig(fs, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	command := strings.Join(fs.Args(), " ")
	if command == "" {
		return fmt.Errorf("send needs a command")
	}

	z, events, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = z.Sync() }()

	return harness.With(ctx, cfg, harness.Options{Logger: events}, func(ctx context.Context, h *harness.Context) error {
		res, err := h.Send(ctx, command)
		if err != nil {
			return err
		}
		fmt.Println(res.Raw)
		return nil
	})
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, err := config.ParseConfig(fs, args)
	if err != nil {
		return err
	}
	addr := cfg.MetricsAddr
	if addr == "" {
		addr = ":8080"
	}

	z, _, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = z.Sync() }()

	var runs web.RunStore
	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return err
		}
		defer j.Close()
		runs = j
	}
	// Counters live in the run process; this one only has the journal.
	srv := web.NewServer(stories.Registry(), runs, nil, z)
	return srv.ListenAndServe(ctx, addr)
}
