package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/cavarest/elemental-dragon/internal/config"
	"github.com/cavarest/elemental-dragon/internal/journal"
	"github.com/cavarest/elemental-dragon/internal/log"
	edmcp "github.com/cavarest/elemental-dragon/internal/mcp"
	"github.com/cavarest/elemental-dragon/internal/metrics"
	"github.com/cavarest/elemental-dragon/internal/stories"
)

func main() {
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol, so logs go to stderr only.
	z, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = z.Sync() }()

	ctrl := edmcp.NewController(cfg, stories.Registry())
	ctrl.Logger = log.NewZapLogger(z)
	ctrl.Recorder = metrics.New()
	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer j.Close()
		ctrl.Journal = j
	}
	defer func() { _, _ = ctrl.Disconnect(context.Background()) }()

	s := server.NewMCPServer("edtest", "1.0.0")
	edmcp.RegisterTools(s, ctrl)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
