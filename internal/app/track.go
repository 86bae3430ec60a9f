package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/slanglab/internal/cli"
	"horse.fit/slanglab/internal/tracker"
)

func runTrack(args []string) int {
	fs := flag.NewFlagSet("track", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	termID := fs.String("term-id", "", "Tracked term id (required)")
	timeout := fs.Duration("timeout", 2*time.Minute, "Run timeout")
	format := fs.String("format", outputFormatJSON, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "track does not accept positional arguments")
		return 2
	}
	id := strings.TrimSpace(*termID)
	if id == "" {
		fmt.Fprintln(os.Stderr, "--term-id is required")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	d, err := openDeps(envLoader, 10*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer d.Close()

	sigCtx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, *timeout)
	defer cancel()

	summary, err := d.newRunner().Run(ctx, id)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Tracker not found: %v\n", err)
			return 1
		}
		d.logger.Error().Err(err).Str("term_id", id).Msg("tracker run failed")
		fmt.Fprintf(os.Stderr, "Tracker run failed: %v\n", err)
		return 1
	}

	if err := printRunSummary(summary, outputFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}

func printRunSummary(summary tracker.RunSummary, format string) error {
	if format == outputFormatJSON {
		return printJSON(summary)
	}
	return writeTable(
		[]string{"FIELD", "VALUE"},
		[][]string{
			{"run_id", summary.RunID},
			{"term_id", summary.TermID},
			{"queries_generated", strconv.Itoa(summary.QueriesGenerated)},
			{"results_found", strconv.Itoa(summary.RawHitCount)},
			{"results_processed", strconv.Itoa(summary.ProcessedCount)},
			{"sightings_created", strconv.Itoa(summary.SightingsWritten)},
			{"min_score", strconv.Itoa(summary.MinScoreApplied)},
		},
	)
}
