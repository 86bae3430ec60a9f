package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxRunErrorLength = 4000

// tracker_runs.status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// TermRow is the tracked term a run works on.
type TermRow struct {
	TermID         string
	Text           string
	NormalizedText string
}

// TrackerConfigRow is the per-term tracker configuration.
type TrackerConfigRow struct {
	TermID         string
	Sensitivity    string
	SourcesEnabled []string
	ResultCap      *int
	LastRunAt      *time.Time
}

// SourceRuleRow is one admin-configured source policy.
type SourceRuleRow struct {
	Name            string   `json:"name"`
	Enabled         bool     `json:"enabled"`
	PerRunCap       *int     `json:"per_run_cap,omitempty"`
	DomainAllowlist []string `json:"domain_allowlist"`
	DomainBlocklist []string `json:"domain_blocklist"`
	MinScore        int      `json:"min_score"`
}

// UpsertSightingParams is one qualifying hit to persist.
type UpsertSightingParams struct {
	TermID    string
	URL       string
	Link      string
	Title     string
	Snippet   string
	Source    string
	MatchType string
	Score     int
	Language  *string
	SeenAt    time.Time
}

// UpsertSightingsResult counts written rows. Failed holds one error per row
// that could not be written; earlier rows stay committed.
type UpsertSightingsResult struct {
	Inserted int
	Updated  int
	Failed   []error
}

func (r UpsertSightingsResult) Written() int {
	return r.Inserted + r.Updated
}

// TrackerRunResult closes a tracker_runs row.
type TrackerRunResult struct {
	RunUUID          string
	Status           string
	FinishedAt       time.Time
	QueriesGenerated int
	ResultsFound     int
	ResultsProcessed int
	SightingsWritten int
	MinScore         int
	WriteErrors      int
	Err              error
}

// GetTrackerConfig returns ErrNoRows when the term has no tracker or the id is
// not a UUID.
func (p *Pool) GetTrackerConfig(ctx context.Context, termID string) (TrackerConfigRow, error) {
	if _, err := uuid.Parse(strings.TrimSpace(termID)); err != nil {
		return TrackerConfigRow{}, ErrNoRows
	}

	const q = `
SELECT
	tc.term_id::text,
	tc.sensitivity,
	tc.sources_enabled::text,
	tc.result_cap,
	tc.last_run_at
FROM slang.tracker_configs tc
WHERE tc.term_id = $1::uuid
`

	var row TrackerConfigRow
	var sourcesJSON string
	if err := p.QueryRow(ctx, q, strings.TrimSpace(termID)).Scan(
		&row.TermID,
		&row.Sensitivity,
		&sourcesJSON,
		&row.ResultCap,
		&row.LastRunAt,
	); err != nil {
		return TrackerConfigRow{}, err
	}

	sources, err := decodeStringList(sourcesJSON)
	if err != nil {
		return TrackerConfigRow{}, fmt.Errorf("decode sources_enabled: %w", err)
	}
	row.SourcesEnabled = sources
	return row, nil
}

// GetTerm returns ErrNoRows when the term does not exist.
func (p *Pool) GetTerm(ctx context.Context, termID string) (TermRow, error) {
	if _, err := uuid.Parse(strings.TrimSpace(termID)); err != nil {
		return TermRow{}, ErrNoRows
	}

	const q = `
SELECT
	t.term_id::text,
	t.text,
	t.normalized_text
FROM slang.terms t
WHERE t.term_id = $1::uuid
`

	var row TermRow
	if err := p.QueryRow(ctx, q, strings.TrimSpace(termID)).Scan(&row.TermID, &row.Text, &row.NormalizedText); err != nil {
		return TermRow{}, err
	}
	return row, nil
}

// ListEnabledSourceRules returns enabled rules whose name is in names,
// ordered by name.
func (p *Pool) ListEnabledSourceRules(ctx context.Context, names []string) ([]SourceRuleRow, error) {
	if len(names) == 0 {
		return nil, nil
	}

	namesJSON, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("encode source names: %w", err)
	}

	const q = `
SELECT
	sr.name,
	sr.enabled,
	sr.per_run_cap,
	sr.domain_allowlist::text,
	sr.domain_blocklist::text,
	sr.min_score
FROM slang.source_rules sr
WHERE sr.enabled
  AND sr.name IN (SELECT jsonb_array_elements_text($1::jsonb))
ORDER BY sr.name
`

	rows, err := p.Query(ctx, q, string(namesJSON))
	if err != nil {
		return nil, fmt.Errorf("query source rules: %w", err)
	}
	defer rows.Close()

	items := make([]SourceRuleRow, 0, len(names))
	for rows.Next() {
		var row SourceRuleRow
		var allowJSON, blockJSON string
		if err := rows.Scan(
			&row.Name,
			&row.Enabled,
			&row.PerRunCap,
			&allowJSON,
			&blockJSON,
			&row.MinScore,
		); err != nil {
			return nil, fmt.Errorf("scan source rule row: %w", err)
		}
		if row.DomainAllowlist, err = decodeStringList(allowJSON); err != nil {
			return nil, fmt.Errorf("decode domain_allowlist for %s: %w", row.Name, err)
		}
		if row.DomainBlocklist, err = decodeStringList(blockJSON); err != nil {
			return nil, fmt.Errorf("decode domain_blocklist for %s: %w", row.Name, err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source rule rows: %w", err)
	}

	return items, nil
}

// UpsertSightings writes each row independently on (term_id, url). A failed
// row does not undo rows already written.
func (p *Pool) UpsertSightings(ctx context.Context, rows []UpsertSightingParams) (UpsertSightingsResult, error) {
	var result UpsertSightingsResult
	if len(rows) == 0 {
		return result, nil
	}

	const q = `
INSERT INTO slang.sightings (
	term_id,
	url,
	link,
	title,
	snippet,
	source,
	match_type,
	score,
	language,
	first_seen_at,
	last_seen_at
)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
ON CONFLICT (term_id, url) DO UPDATE
SET
	link = EXCLUDED.link,
	title = EXCLUDED.title,
	snippet = EXCLUDED.snippet,
	source = EXCLUDED.source,
	match_type = EXCLUDED.match_type,
	score = EXCLUDED.score,
	language = COALESCE(EXCLUDED.language, slang.sightings.language),
	last_seen_at = GREATEST(slang.sightings.last_seen_at, EXCLUDED.last_seen_at)
RETURNING (xmax = 0) AS inserted
`

	for _, row := range rows {
		var inserted bool
		err := p.QueryRow(
			ctx,
			q,
			row.TermID,
			row.URL,
			row.Link,
			row.Title,
			row.Snippet,
			row.Source,
			row.MatchType,
			row.Score,
			row.Language,
			row.SeenAt.UTC(),
		).Scan(&inserted)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.Failed = append(result.Failed, fmt.Errorf("upsert sighting %s: %w", row.URL, ctxErr))
				return result, ctxErr
			}
			result.Failed = append(result.Failed, fmt.Errorf("upsert sighting %s: %w", row.URL, err))
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	if len(result.Failed) > 0 {
		return result, errors.Join(result.Failed...)
	}
	return result, nil
}

func (p *Pool) UpdateTrackerLastRun(ctx context.Context, termID string, ranAt time.Time) error {
	const q = `
UPDATE slang.tracker_configs
SET
	last_run_at = $2,
	updated_at = $2
WHERE term_id = $1::uuid
`
	tag, err := p.Exec(ctx, q, termID, ranAt.UTC())
	if err != nil {
		return fmt.Errorf("update tracker last_run_at: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// InsertTrackerRun opens a tracker_runs row in the running state.
func (p *Pool) InsertTrackerRun(ctx context.Context, runUUID, termID string, startedAt time.Time) error {
	const q = `
INSERT INTO slang.tracker_runs (
	run_uuid,
	term_id,
	status,
	started_at
)
VALUES ($1::uuid, $2::uuid, 'running', $3)
`
	_, err := p.Exec(ctx, q, runUUID, termID, startedAt.UTC())
	return err
}

func (p *Pool) FinishTrackerRun(ctx context.Context, res TrackerRunResult) error {
	const q = `
UPDATE slang.tracker_runs
SET
	status = $2,
	finished_at = $3,
	queries_generated = $4,
	results_found = $5,
	results_processed = $6,
	sightings_written = $7,
	min_score = $8,
	write_errors = $9,
	error_message = $10
WHERE run_uuid = $1::uuid
`

	var message *string
	if res.Err != nil {
		msg := strings.TrimSpace(res.Err.Error())
		if len(msg) > maxRunErrorLength {
			msg = msg[:maxRunErrorLength]
		}
		message = &msg
	}

	_, err := p.Exec(
		ctx,
		q,
		res.RunUUID,
		res.Status,
		res.FinishedAt.UTC(),
		res.QueriesGenerated,
		res.ResultsFound,
		res.ResultsProcessed,
		res.SightingsWritten,
		res.MinScore,
		res.WriteErrors,
		message,
	)
	return err
}

// ListStaleTrackers returns term ids whose tracker never ran or last ran
// before cutoff, oldest first.
func (p *Pool) ListStaleTrackers(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT tc.term_id::text
FROM slang.tracker_configs tc
WHERE tc.last_run_at IS NULL
   OR tc.last_run_at < $1
ORDER BY tc.last_run_at NULLS FIRST, tc.term_id
LIMIT $2
`

	rows, err := p.Query(ctx, q, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query stale trackers: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale tracker row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale tracker rows: %w", err)
	}
	return ids, nil
}

func decodeStringList(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(trimmed), &values); err != nil {
		return nil, err
	}
	out := values[:0]
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out, nil
}
