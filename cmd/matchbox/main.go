// Matchbox - semantic job ranking against a candidate profile.
//
// Ranks job postings by combining embedding cosine similarity with skill
// overlap, caching embeddings locally so repeat runs cost no extra API
// calls.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/asteroid-belt/matchbox/internal/cli"
	"github.com/asteroid-belt/matchbox/internal/config"
	"github.com/asteroid-belt/matchbox/internal/log"
	"github.com/asteroid-belt/matchbox/internal/telemetry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}

	// Engine-internal logging goes to the log file so it never mixes
	// with result output.
	paths := config.GetPaths(cfg)
	if err := log.Init(paths.Logs); err == nil {
		defer func() { _ = log.Close() }()
	}

	telemetryClient := telemetry.New()
	defer telemetryClient.Close()

	if err := cli.Execute(ctx, telemetryClient); err != nil {
		os.Exit(1)
	}
}
