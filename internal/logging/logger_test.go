package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New("local", "chatty"); err == nil {
		t.Fatalf("expected error for unknown log level")
	}
}

func TestNewAcceptsMixedCaseLevel(t *testing.T) {
	t.Parallel()

	logger, err := New("production", " WARN ")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if got := logger.GetLevel().String(); got != "warn" {
		t.Fatalf("unexpected level: %q", got)
	}
}

func TestBlankLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	logger, err := New("production", "")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if got := logger.GetLevel().String(); got != "info" {
		t.Fatalf("unexpected level: %q", got)
	}
}

func TestNewWithWriterAddsServiceFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, " Production ", "info")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Debug().Msg("dropped")
	logger.Info().Str("term_id", "t1").Msg("tracker run completed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "slanglab" || entry["environment"] != "production" || entry["term_id"] != "t1" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
}
