package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"horse.fit/slanglab/internal/tracker"
)

func runExpand(args []string) int {
	fs := flag.NewFlagSet("expand", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	term := fs.String("term", "", "Term to expand (required)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*term) == "" {
		fmt.Fprintln(os.Stderr, "--term is required")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	queries := tracker.Expand(*term)
	if outputFormat == outputFormatJSON {
		err = printJSON(map[string]any{
			"term":    tracker.NormalizeTerm(*term),
			"queries": queries,
		})
	} else {
		for _, query := range queries {
			if _, err = fmt.Println(query); err != nil {
				break
			}
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}
