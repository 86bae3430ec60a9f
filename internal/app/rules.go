package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/slanglab/internal/cli"
	"horse.fit/slanglab/internal/globaltime"
	payloadschema "horse.fit/slanglab/schema"
)

func runRules(args []string) int {
	if len(args) == 0 {
		printRulesUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printRulesUsage()
		return 0
	case "import":
		return runRulesImport(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown rules command: %s\n\n", args[0])
		printRulesUsage()
		return 2
	}
}

func printRulesUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  slanglab rules import --file rules.json")
}

func runRulesImport(args []string) int {
	fs := flag.NewFlagSet("rules import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	file := fs.String("file", "", "Path to a source rules JSON document (required)")
	dryRun := fs.Bool("dry-run", false, "Validate only; do not write to the database")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	path := strings.TrimSpace(*file)
	if path == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		return 2
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", path, err)
		return 1
	}
	doc, err := payloadschema.ValidateSourceRulesPayload(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid source rules: %v\n", err)
		return 1
	}
	if *dryRun {
		fmt.Printf("ok: %d source rules valid\n", len(doc.Rules))
		return 0
	}

	d, err := openDeps(envLoader, 10*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	imported, err := d.pool.ImportSourceRules(ctx, doc.Rules, globaltime.UTC())
	if err != nil {
		d.logger.Error().Err(err).Str("file", path).Msg("source rule import failed")
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		return 1
	}

	d.logger.Info().Int("imported", imported).Str("file", path).Msg("source rules imported")
	fmt.Printf("ok: imported %d source rules\n", imported)
	return 0
}
