package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed sql/pre_automigrate.sql
var preAutoMigrateSQL string

//go:embed sql/post_automigrate.sql
var postAutoMigrateSQL string

type migrationStep struct {
	name string
	run  func(ctx context.Context, p *Pool) error
}

// migrationSteps creates the slang schema, lets gorm reconcile the model
// tables, then adds the indexes and CHECK constraints gorm cannot express.
func migrationSteps() []migrationStep {
	return []migrationStep{
		{name: "create schema", run: rawSQLStep(preAutoMigrateSQL)},
		{name: "reconcile tables", run: func(ctx context.Context, p *Pool) error {
			return p.gdb.WithContext(ctx).AutoMigrate(autoMigrateModels()...)
		}},
		{name: "indexes and constraints", run: rawSQLStep(postAutoMigrateSQL)},
	}
}

func rawSQLStep(sqlText string) func(ctx context.Context, p *Pool) error {
	return func(ctx context.Context, p *Pool) error {
		trimmed := strings.TrimSpace(sqlText)
		if trimmed == "" {
			return nil
		}
		_, err := p.Exec(ctx, trimmed)
		return err
	}
}

func (p *Pool) autoMigrate(ctx context.Context) error {
	if p == nil || p.gdb == nil {
		return errPoolClosed
	}
	for _, step := range migrationSteps() {
		if err := step.run(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	return nil
}
