package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/slanglab/internal/cli"
)

func runSchedule(args []string) int {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	interval := fs.Duration("interval", 0, "Sweep interval; 0 runs a single sweep and exits")
	staleAfter := fs.Duration("stale-after", 24*time.Hour, "Run trackers whose last run is older than this")
	limit := fs.Int("limit", 50, "Maximum trackers per sweep")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *interval < 0 {
		fmt.Fprintln(os.Stderr, "--interval must be >= 0")
		return 2
	}
	if *staleAfter <= 0 {
		fmt.Fprintln(os.Stderr, "--stale-after must be > 0")
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}

	d, err := openDeps(envLoader, 10*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer d.Close()

	ctx, stop := signalContext()
	defer stop()

	runner := d.newRunner()
	sweep := func() error {
		result, err := runner.RunStale(ctx, d.pool, *staleAfter, *limit)
		d.logger.Info().
			Int("candidates", result.Candidates).
			Int("completed", result.Completed).
			Int("failed", result.Failed).
			Int("sightings", result.Sightings).
			Msg("tracker sweep finished")
		return err
	}

	if *interval == 0 {
		if err := sweep(); err != nil {
			fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
			return 1
		}
		return 0
	}

	return runEvery(ctx, *interval, sweep, d.logger)
}

// runEvery runs fn immediately and then on every tick until ctx is done.
func runEvery(ctx context.Context, interval time.Duration, fn func() error, logger zerolog.Logger) int {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("tracker sweep failed")
		}
		select {
		case <-ctx.Done():
			return 0
		case <-ticker.C:
		}
	}
}
