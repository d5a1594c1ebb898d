package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cavarest/elemental-dragon/internal/journal"
	"github.com/cavarest/elemental-dragon/internal/stories"
	"github.com/cavarest/elemental-dragon/internal/web"
)

func main() {
	port := flag.Int("port", 8080, "HTTP port to listen on")
	journalFile := flag.String("journal", "edtest.db", "path to run journal")
	flag.Parse()

	z, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = z.Sync() }()

	j, err := journal.Open(*journalFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics are served by edtest run --metrics-addr, which owns the counters.
	srv := web.NewServer(stories.Registry(), j, nil, z)
	addr := fmt.Sprintf(":%d", *port)
	z.Info("edtest status server", zap.String("url", fmt.Sprintf("http://localhost:%d", *port)))
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
