package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SightingListItem is a persisted sighting as served by the read API.
type SightingListItem struct {
	SightingUUID string    `json:"sighting_id"`
	TermID       string    `json:"term_id"`
	URL          string    `json:"url"`
	Link         string    `json:"link"`
	Title        string    `json:"title"`
	Snippet      string    `json:"snippet"`
	Source       string    `json:"source"`
	MatchType    string    `json:"match_type"`
	Score        int       `json:"score"`
	Language     *string   `json:"language,omitempty"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// SightingListOptions controls sighting listing queries.
type SightingListOptions struct {
	TermID   string
	MinScore int
	Page     int
	PageSize int
}

// ListSightings returns the total row count and one page of sightings for a
// term, best score first.
func (p *Pool) ListSightings(ctx context.Context, opts SightingListOptions) (int64, []SightingListItem, error) {
	if opts.PageSize <= 0 {
		return 0, nil, fmt.Errorf("page size must be > 0")
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if _, err := uuid.Parse(strings.TrimSpace(opts.TermID)); err != nil {
		return 0, nil, ErrNoRows
	}

	const countQ = `
SELECT COUNT(*)::BIGINT
FROM slang.sightings s
WHERE s.term_id = $1::uuid
  AND s.score >= $2
`

	var total int64
	if err := p.QueryRow(ctx, countQ, opts.TermID, opts.MinScore).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count sightings: %w", err)
	}
	if total == 0 {
		return 0, []SightingListItem{}, nil
	}

	const q = `
SELECT
	s.sighting_uuid::text,
	s.term_id::text,
	s.url,
	s.link,
	s.title,
	s.snippet,
	s.source,
	s.match_type,
	s.score,
	s.language,
	s.first_seen_at,
	s.last_seen_at
FROM slang.sightings s
WHERE s.term_id = $1::uuid
  AND s.score >= $2
ORDER BY s.score DESC, s.last_seen_at DESC, s.sighting_id
LIMIT $3
OFFSET $4
`

	rows, err := p.Query(ctx, q, opts.TermID, opts.MinScore, opts.PageSize, (opts.Page-1)*opts.PageSize)
	if err != nil {
		return 0, nil, fmt.Errorf("query sightings: %w", err)
	}
	defer rows.Close()

	items := make([]SightingListItem, 0, opts.PageSize)
	for rows.Next() {
		item, err := scanSighting(rows)
		if err != nil {
			return 0, nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterate sighting rows: %w", err)
	}

	return total, items, nil
}

// GetSighting returns ErrNoRows for unknown or malformed ids.
func (p *Pool) GetSighting(ctx context.Context, sightingUUID string) (SightingListItem, error) {
	if _, err := uuid.Parse(strings.TrimSpace(sightingUUID)); err != nil {
		return SightingListItem{}, ErrNoRows
	}

	const q = `
SELECT
	s.sighting_uuid::text,
	s.term_id::text,
	s.url,
	s.link,
	s.title,
	s.snippet,
	s.source,
	s.match_type,
	s.score,
	s.language,
	s.first_seen_at,
	s.last_seen_at
FROM slang.sightings s
WHERE s.sighting_uuid = $1::uuid
`

	return scanSighting(p.QueryRow(ctx, q, strings.TrimSpace(sightingUUID)))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSighting(row scanner) (SightingListItem, error) {
	var item SightingListItem
	err := row.Scan(
		&item.SightingUUID,
		&item.TermID,
		&item.URL,
		&item.Link,
		&item.Title,
		&item.Snippet,
		&item.Source,
		&item.MatchType,
		&item.Score,
		&item.Language,
		&item.FirstSeenAt,
		&item.LastSeenAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return SightingListItem{}, err
		}
		return SightingListItem{}, fmt.Errorf("scan sighting row: %w", err)
	}
	return item, nil
}
