package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"horse.fit/slanglab/internal/config"
)

var ErrNoRows = sql.ErrNoRows

var errPoolClosed = errors.New("database pool is not initialized")

type CommandTag struct {
	rowsAffected int64
}

func (c CommandTag) RowsAffected() int64 {
	return c.rowsAffected
}

// Row scans as ErrNoRows when the query never ran.
type Row struct {
	row *sql.Row
	err error
}

func (r *Row) Scan(dest ...any) error {
	switch {
	case r == nil || (r.row == nil && r.err == nil):
		return ErrNoRows
	case r.err != nil:
		return r.err
	}
	return r.row.Scan(dest...)
}

type Rows struct {
	rows *sql.Rows
}

func (r *Rows) Next() bool {
	return r != nil && r.rows != nil && r.rows.Next()
}

func (r *Rows) Scan(dest ...any) error {
	if r == nil || r.rows == nil {
		return ErrNoRows
	}
	return r.rows.Scan(dest...)
}

func (r *Rows) Err() error {
	if r == nil || r.rows == nil {
		return nil
	}
	return r.rows.Err()
}

func (r *Rows) Close() {
	if r != nil && r.rows != nil {
		_ = r.rows.Close()
	}
}

// Querier runs raw SQL. Pool and the handle passed to InTx both satisfy it.
type Querier interface {
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
	Exec(ctx context.Context, query string, args ...any) (CommandTag, error)
}

type gormQuerier struct {
	db *gorm.DB
}

func (q gormQuerier) QueryRow(ctx context.Context, query string, args ...any) *Row {
	return &Row{row: q.db.WithContext(ctx).Raw(query, args...).Row()}
}

func (q gormQuerier) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	rows, err := q.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

func (q gormQuerier) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	res := q.db.WithContext(ctx).Exec(query, args...)
	return CommandTag{rowsAffected: res.RowsAffected}, res.Error
}

// Pool is the Postgres handle behind the tracker, rule and sighting stores.
type Pool struct {
	gdb   *gorm.DB
	sqlDB *sql.DB
}

// NewPool connects, sizes the connection pool from config and migrates the
// slang schema. SQL logging goes through log at a level derived from
// LOG_LEVEL.
func NewPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:  newGormLogger(log, cfg.LogLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}
	configurePool(sqlDB, cfg)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pool := &Pool{gdb: gdb, sqlDB: sqlDB}
	if err := pool.autoMigrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}
	return pool, nil
}

// configurePool keeps at least one idle connection so scheduled sweeps do not
// reconnect on every tick.
func configurePool(sqlDB *sql.DB, cfg *config.Config) {
	maxOpen := int(cfg.DBMaxConns)
	if maxOpen <= 0 {
		maxOpen = 8
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(max(1, min(int(cfg.DBMinConns), maxOpen)))
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
}

func (p *Pool) querier() (gormQuerier, error) {
	if p == nil || p.gdb == nil {
		return gormQuerier{}, errPoolClosed
	}
	return gormQuerier{db: p.gdb}, nil
}

func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *Row {
	q, err := p.querier()
	if err != nil {
		return &Row{err: err}
	}
	return q.QueryRow(ctx, query, args...)
}

func (p *Pool) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	q, err := p.querier()
	if err != nil {
		return nil, err
	}
	return q.Query(ctx, query, args...)
}

func (p *Pool) Exec(ctx context.Context, query string, args ...any) (CommandTag, error) {
	q, err := p.querier()
	if err != nil {
		return CommandTag{}, err
	}
	return q.Exec(ctx, query, args...)
}

// InTx runs fn inside one transaction. fn's error rolls everything back.
func (p *Pool) InTx(ctx context.Context, fn func(q Querier) error) error {
	if p == nil || p.gdb == nil {
		return errPoolClosed
	}
	return p.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormQuerier{db: tx})
	})
}

// Ping checks connectivity without touching the schema.
func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.sqlDB == nil {
		return errPoolClosed
	}
	return p.sqlDB.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

func IsNoRows(err error) bool {
	return errors.Is(err, ErrNoRows)
}
