package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
)

func TestNilPoolReportsClosed(t *testing.T) {
	t.Parallel()

	var pool *Pool
	ctx := context.Background()
	if _, err := pool.Exec(ctx, "SELECT 1"); !errors.Is(err, errPoolClosed) {
		t.Fatalf("expected errPoolClosed from Exec, got %v", err)
	}
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(new(int)); !errors.Is(err, errPoolClosed) {
		t.Fatalf("expected errPoolClosed from QueryRow, got %v", err)
	}
	if err := pool.InTx(ctx, func(Querier) error { return nil }); !errors.Is(err, errPoolClosed) {
		t.Fatalf("expected errPoolClosed from InTx, got %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("closing a nil pool should be a no-op, got %v", err)
	}
}

func TestEmptyRowScansNoRows(t *testing.T) {
	t.Parallel()

	var row *Row
	if err := row.Scan(new(int)); !IsNoRows(err) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
	var rows *Rows
	if rows.Next() || rows.Err() != nil {
		t.Fatalf("nil rows should be empty")
	}
}

func TestGormLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]gormlogger.LogLevel{
		"debug":  gormlogger.Info,
		"TRACE":  gormlogger.Info,
		"info":   gormlogger.Warn,
		"":       gormlogger.Warn,
		"error":  gormlogger.Error,
		"silent": gormlogger.Silent,
	}
	for in, want := range cases {
		if got := gormLevel(in); got != want {
			t.Fatalf("gormLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGormLoggerTrace(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := newGormLogger(zerolog.New(&buf), "info")
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), sql, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast successful query should not log at warn level: %s", buf.String())
	}

	l.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	if !strings.Contains(buf.String(), "query failed") || !strings.Contains(buf.String(), `"component":"db"`) {
		t.Fatalf("expected failed query log, got %s", buf.String())
	}

	buf.Reset()
	l.Trace(context.Background(), time.Now(), sql, ErrNoRows)
	if buf.Len() != 0 {
		t.Fatalf("no-rows should not be logged as a failure: %s", buf.String())
	}

	buf.Reset()
	l.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	if !strings.Contains(buf.String(), "slow query") {
		t.Fatalf("expected slow query warning, got %s", buf.String())
	}

	buf.Reset()
	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	if buf.Len() != 0 {
		t.Fatalf("silent logger wrote output: %s", buf.String())
	}
}

func TestMigrationStepsOrder(t *testing.T) {
	t.Parallel()

	steps := migrationSteps()
	if len(steps) != 3 || steps[0].name != "create schema" || steps[2].name != "indexes and constraints" {
		t.Fatalf("unexpected migration steps: %+v", steps)
	}
	if !strings.Contains(preAutoMigrateSQL, "CREATE SCHEMA IF NOT EXISTS slang") {
		t.Fatalf("pre-migrate SQL must create the slang schema")
	}
	if !strings.Contains(postAutoMigrateSQL, "sightings_term_url_key") {
		t.Fatalf("post-migrate SQL must create the sighting uniqueness index")
	}
}
