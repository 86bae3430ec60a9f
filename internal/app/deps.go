package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/slanglab/internal/cli"
	"horse.fit/slanglab/internal/config"
	"horse.fit/slanglab/internal/db"
	"horse.fit/slanglab/internal/langdetect"
	"horse.fit/slanglab/internal/logging"
	"horse.fit/slanglab/internal/sources"
	"horse.fit/slanglab/internal/tracker"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

// deps is the shared state of commands that talk to the database.
type deps struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *db.Pool
}

func loadConfig(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func openDeps(envLoader *cli.EnvLoader, connectTimeout time.Duration) (*deps, error) {
	cfg, logger, err := loadConfig(envLoader)
	if err != nil {
		return nil, err
	}

	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &deps{cfg: cfg, logger: logger, pool: pool}, nil
}

func (d *deps) Close() {
	if d != nil && d.pool != nil {
		_ = d.pool.Close()
	}
}

func (d *deps) newRunner() *tracker.Runner {
	return tracker.NewRunner(d.pool, d.logger, tracker.Options{
		Sources:        sources.FromConfig(d.cfg, d.logger),
		SourceTimeout:  d.cfg.SourceTimeout,
		DetectLanguage: langdetect.DetectISO6391,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}
