// Package tracker runs the term-tracking pipeline: expand a tracked phrase into
// search queries, fan out to content sources, score and dedupe the hits, and
// persist qualifying sightings.
package tracker

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	MatchTypeWebSearch  = "web_search"
	MatchTypeNewsSearch = "news_search"

	// DefaultPerRunCap applies when a source rule leaves per_run_cap unset.
	DefaultPerRunCap = 25
)

// ErrNotFound marks a run aborted because the tracker config or the term is
// missing.
var ErrNotFound = errors.New("not found")

// RawHit is one candidate returned by a source. It is never persisted as is.
type RawHit struct {
	URL         string
	Title       string
	Snippet     string
	Source      string
	PublishedAt *time.Time
	MatchType   string
}

// ScoredHit is a RawHit with its dedup key and score.
type ScoredHit struct {
	RawHit
	Key   string
	Score int
}

// Source is one external content provider. Search never fails: transient
// errors, missing credentials and malformed responses are logged by the
// implementation and reported as zero hits.
type Source interface {
	Name() string
	Search(ctx context.Context, queries []string, domainAllowlist []string, maxResults int) []RawHit
}

// RunSummary reports one tracker run.
type RunSummary struct {
	RunID            string `json:"run_id"`
	TermID           string `json:"term_id"`
	QueriesGenerated int    `json:"queries_generated"`
	RawHitCount      int    `json:"results_found"`
	ProcessedCount   int    `json:"results_processed"`
	SightingsWritten int    `json:"sightings_created"`
	MinScoreApplied  int    `json:"min_score"`
}

// NormalizeTerm lowercases a phrase and collapses its whitespace.
func NormalizeTerm(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}
