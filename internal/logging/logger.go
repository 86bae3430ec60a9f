package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "slanglab"

// New builds the process logger: console output on stderr for local runs,
// JSON on stdout everywhere else so CLI output stays clean.
func New(environment, level string) (zerolog.Logger, error) {
	return NewWithWriter(writerFor(environment), environment, level)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(w io.Writer, environment, level string) (zerolog.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	env := strings.ToLower(strings.TrimSpace(environment))
	return zerolog.New(w).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("environment", env).
		Logger(), nil
}

func parseLevel(raw string) (zerolog.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(normalized)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse LOG_LEVEL=%q: %w", raw, err)
	}
	return level, nil
}

func writerFor(environment string) io.Writer {
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return os.Stdout
}
