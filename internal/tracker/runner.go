package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/slanglab/internal/db"
	"horse.fit/slanglab/internal/globaltime"
)

const defaultSourceTimeout = 15 * time.Second

// Store is the persistence a run needs. *db.Pool satisfies it.
type Store interface {
	GetTrackerConfig(ctx context.Context, termID string) (db.TrackerConfigRow, error)
	GetTerm(ctx context.Context, termID string) (db.TermRow, error)
	ListEnabledSourceRules(ctx context.Context, names []string) ([]db.SourceRuleRow, error)
	UpsertSightings(ctx context.Context, rows []db.UpsertSightingParams) (db.UpsertSightingsResult, error)
	UpdateTrackerLastRun(ctx context.Context, termID string, ranAt time.Time) error
}

// RunRecorder keeps run history. Stores that implement it get one
// tracker_runs row per run.
type RunRecorder interface {
	InsertTrackerRun(ctx context.Context, runUUID, termID string, startedAt time.Time) error
	FinishTrackerRun(ctx context.Context, res db.TrackerRunResult) error
}

type Options struct {
	Sources       []Source
	SourceTimeout time.Duration
	// DetectLanguage returns an ISO 639-1 code for a sighting's text, or "".
	DetectLanguage func(text string) string
	Now            func() time.Time
}

type Runner struct {
	store          Store
	recorder       RunRecorder
	sources        map[string]Source
	logger         zerolog.Logger
	sourceTimeout  time.Duration
	detectLanguage func(string) string
	now            func() time.Time
	locks          *termLocks
}

func NewRunner(store Store, logger zerolog.Logger, opts Options) *Runner {
	sources := make(map[string]Source, len(opts.Sources))
	for _, source := range opts.Sources {
		if source == nil {
			continue
		}
		sources[sourceKey(source.Name())] = source
	}

	timeout := opts.SourceTimeout
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	now := opts.Now
	if now == nil {
		now = globaltime.UTC
	}

	recorder, _ := store.(RunRecorder)

	return &Runner{
		store:          store,
		recorder:       recorder,
		sources:        sources,
		logger:         logger.With().Str("component", "tracker").Logger(),
		sourceTimeout:  timeout,
		detectLanguage: opts.DetectLanguage,
		now:            now,
		locks:          newTermLocks(),
	}
}

// Run executes one tracker run for termID. It returns ErrNotFound (wrapped)
// when the tracker config or the term is missing. Source failures and sighting
// write failures are logged and never fail the run.
func (r *Runner) Run(ctx context.Context, termID string) (RunSummary, error) {
	if r == nil || r.store == nil {
		return RunSummary{}, fmt.Errorf("tracker runner is not initialized")
	}

	termID = strings.TrimSpace(termID)
	if termID == "" {
		return RunSummary{}, fmt.Errorf("%w: tracker config for empty term id", ErrNotFound)
	}

	release := r.locks.acquire(termID)
	defer release()

	startedAt := r.now().UTC()
	logger := r.logger.With().Str("term_id", termID).Logger()

	cfg, err := r.store.GetTrackerConfig(ctx, termID)
	if err != nil {
		if db.IsNoRows(err) {
			return RunSummary{}, fmt.Errorf("%w: tracker config for term %s", ErrNotFound, termID)
		}
		return RunSummary{}, fmt.Errorf("load tracker config: %w", err)
	}

	term, err := r.store.GetTerm(ctx, termID)
	if err != nil {
		if db.IsNoRows(err) {
			return RunSummary{}, fmt.Errorf("%w: term %s", ErrNotFound, termID)
		}
		return RunSummary{}, fmt.Errorf("load term: %w", err)
	}

	rules, err := r.store.ListEnabledSourceRules(ctx, cfg.SourcesEnabled)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load source rules: %w", err)
	}

	phrase := term.NormalizedText
	if strings.TrimSpace(phrase) == "" {
		phrase = term.Text
	}
	queries := Expand(phrase)

	summary := RunSummary{
		RunID:            uuid.NewString(),
		TermID:           termID,
		QueriesGenerated: len(queries),
	}
	logger = logger.With().Str("run_id", summary.RunID).Logger()
	r.recordStart(ctx, summary, startedAt, logger)

	hits := r.collect(ctx, rules, cfg, queries, logger)
	summary.RawHitCount = len(hits)

	if err := ctx.Err(); err != nil {
		r.recordFinish(summary, db.RunStatusFailed, 0, err, logger)
		return summary, fmt.Errorf("tracker run interrupted: %w", err)
	}

	processed := Process(hits, phrase, startedAt)
	minScore := minRuleScore(rules)
	summary.MinScoreApplied = minScore

	rows := make([]db.UpsertSightingParams, 0, len(processed))
	for _, hit := range processed {
		if hit.Score < minScore {
			continue
		}
		rows = append(rows, r.sightingParams(termID, hit, startedAt))
	}
	summary.ProcessedCount = len(rows)

	written, err := r.store.UpsertSightings(ctx, rows)
	if err != nil {
		logger.Error().
			Err(err).
			Int("failed_rows", len(written.Failed)).
			Int("written_rows", written.Written()).
			Msg("sighting persistence incomplete")
	}
	summary.SightingsWritten = written.Written()

	if err := r.store.UpdateTrackerLastRun(ctx, termID, startedAt); err != nil {
		logger.Error().Err(err).Msg("failed to update tracker last_run_at")
	}

	r.recordFinish(summary, db.RunStatusCompleted, len(written.Failed), nil, logger)

	logger.Info().
		Int("queries", summary.QueriesGenerated).
		Int("results_found", summary.RawHitCount).
		Int("results_processed", summary.ProcessedCount).
		Int("sightings_written", summary.SightingsWritten).
		Int("min_score", summary.MinScoreApplied).
		Dur("duration", r.now().Sub(startedAt)).
		Msg("tracker run completed")

	return summary, nil
}

// collect queries every enabled source concurrently and concatenates their
// hits in rule order. A source that fails or times out contributes nothing.
func (r *Runner) collect(
	ctx context.Context,
	rules []db.SourceRuleRow,
	cfg db.TrackerConfigRow,
	queries []string,
	logger zerolog.Logger,
) []RawHit {
	if len(queries) == 0 || len(rules) == 0 {
		return nil
	}

	batches := make([][]RawHit, len(rules))
	// Branches never return an error: a failing source only loses its batch,
	// so the group just joins them.
	var g errgroup.Group

	for i, rule := range rules {
		source, ok := r.sources[sourceKey(rule.Name)]
		if !ok {
			logger.Warn().Str("source", rule.Name).Msg("no adapter for enabled source; skipping")
			continue
		}
		limit := perRunCap(rule, cfg)

		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, r.sourceTimeout)
			defer cancel()

			started := time.Now()
			hits := source.Search(callCtx, queries, rule.DomainAllowlist, limit)
			if len(hits) > limit {
				hits = hits[:limit]
			}
			kept := FilterBlocked(hits, rule.DomainBlocklist)
			batches[i] = kept

			event := logger.Debug()
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				event = logger.Warn()
			}
			event.
				Str("source", rule.Name).
				Int("limit", limit).
				Int("hits", len(hits)).
				Int("blocked", len(hits)-len(kept)).
				Dur("elapsed", time.Since(started)).
				Msg("source search finished")
			return nil
		})
	}
	_ = g.Wait()

	var out []RawHit
	for _, batch := range batches {
		out = append(out, batch...)
	}
	return out
}

func (r *Runner) sightingParams(termID string, hit ScoredHit, seenAt time.Time) db.UpsertSightingParams {
	params := db.UpsertSightingParams{
		TermID:    termID,
		URL:       hit.Key,
		Link:      strings.TrimSpace(hit.URL),
		Title:     hit.Title,
		Snippet:   hit.Snippet,
		Source:    hit.Source,
		MatchType: hit.MatchType,
		Score:     hit.Score,
		SeenAt:    seenAt,
	}
	if r.detectLanguage != nil {
		if code := r.detectLanguage(strings.TrimSpace(hit.Title + "\n" + hit.Snippet)); code != "" {
			params.Language = &code
		}
	}
	return params
}

func (r *Runner) recordStart(ctx context.Context, summary RunSummary, startedAt time.Time, logger zerolog.Logger) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.InsertTrackerRun(ctx, summary.RunID, summary.TermID, startedAt); err != nil {
		logger.Warn().Err(err).Msg("failed to insert tracker run record")
	}
}

// recordFinish uses a fresh context so a cancelled run still gets closed.
func (r *Runner) recordFinish(summary RunSummary, status string, writeErrors int, runErr error, logger zerolog.Logger) {
	if r.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := r.recorder.FinishTrackerRun(ctx, db.TrackerRunResult{
		RunUUID:          summary.RunID,
		Status:           status,
		FinishedAt:       r.now().UTC(),
		QueriesGenerated: summary.QueriesGenerated,
		ResultsFound:     summary.RawHitCount,
		ResultsProcessed: summary.ProcessedCount,
		SightingsWritten: summary.SightingsWritten,
		MinScore:         summary.MinScoreApplied,
		WriteErrors:      writeErrors,
		Err:              runErr,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to finish tracker run record")
	}
}

// perRunCap is the rule cap (default 25), lowered to the tracker's result cap
// when one is set.
func perRunCap(rule db.SourceRuleRow, cfg db.TrackerConfigRow) int {
	limit := DefaultPerRunCap
	if rule.PerRunCap != nil && *rule.PerRunCap > 0 {
		limit = *rule.PerRunCap
	}
	if cfg.ResultCap != nil && *cfg.ResultCap > 0 && *cfg.ResultCap < limit {
		limit = *cfg.ResultCap
	}
	return limit
}

// minRuleScore is the most permissive threshold among the rules, 0 if none.
func minRuleScore(rules []db.SourceRuleRow) int {
	if len(rules) == 0 {
		return 0
	}
	lowest := rules[0].MinScore
	for _, rule := range rules[1:] {
		lowest = min(lowest, rule.MinScore)
	}
	return lowest
}

func sourceKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
