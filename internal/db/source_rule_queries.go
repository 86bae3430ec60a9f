package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ImportSourceRules upserts rules by name in one transaction. Either every
// rule lands or none does.
func (p *Pool) ImportSourceRules(ctx context.Context, rules []SourceRuleRow, now time.Time) (int, error) {
	if len(rules) == 0 {
		return 0, nil
	}

	err := p.InTx(ctx, func(q Querier) error {
		for _, rule := range rules {
			if err := upsertSourceRule(ctx, q, rule, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("import source rules: %w", err)
	}
	return len(rules), nil
}

func upsertSourceRule(ctx context.Context, q Querier, rule SourceRuleRow, now time.Time) error {
	name := strings.ToLower(strings.TrimSpace(rule.Name))
	if name == "" {
		return fmt.Errorf("source rule name is required")
	}

	allow, err := encodeStringList(rule.DomainAllowlist)
	if err != nil {
		return fmt.Errorf("encode domain_allowlist for %s: %w", name, err)
	}
	block, err := encodeStringList(rule.DomainBlocklist)
	if err != nil {
		return fmt.Errorf("encode domain_blocklist for %s: %w", name, err)
	}

	const stmt = `
INSERT INTO slang.source_rules (
	name,
	enabled,
	per_run_cap,
	domain_allowlist,
	domain_blocklist,
	min_score,
	updated_at
)
VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7)
ON CONFLICT (name) DO UPDATE
SET
	enabled = EXCLUDED.enabled,
	per_run_cap = EXCLUDED.per_run_cap,
	domain_allowlist = EXCLUDED.domain_allowlist,
	domain_blocklist = EXCLUDED.domain_blocklist,
	min_score = EXCLUDED.min_score,
	updated_at = EXCLUDED.updated_at
`
	if _, err := q.Exec(ctx, stmt, name, rule.Enabled, rule.PerRunCap, allow, block, rule.MinScore, now.UTC()); err != nil {
		return fmt.Errorf("upsert source rule %s: %w", name, err)
	}
	return nil
}

func encodeStringList(values []string) (string, error) {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
