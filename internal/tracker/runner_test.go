package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/slanglab/internal/db"
)

var runNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type stubTrackerStore struct {
	mu sync.Mutex

	configs   map[string]db.TrackerConfigRow
	terms     map[string]db.TermRow
	rules     []db.SourceRuleRow
	configErr error
	rulesErr  error
	failURLs  map[string]bool

	sightings map[string]db.UpsertSightingParams
	lastRun   map[string]time.Time
	runs      map[string]db.TrackerRunResult
	started   []string
}

func newStubTrackerStore() *stubTrackerStore {
	return &stubTrackerStore{
		configs:   map[string]db.TrackerConfigRow{},
		terms:     map[string]db.TermRow{},
		failURLs:  map[string]bool{},
		sightings: map[string]db.UpsertSightingParams{},
		lastRun:   map[string]time.Time{},
		runs:      map[string]db.TrackerRunResult{},
	}
}

func (s *stubTrackerStore) addTracker(termID, text string, sources ...string) {
	s.configs[termID] = db.TrackerConfigRow{TermID: termID, Sensitivity: "balanced", SourcesEnabled: sources}
	s.terms[termID] = db.TermRow{TermID: termID, Text: text, NormalizedText: NormalizeTerm(text)}
}

func (s *stubTrackerStore) GetTrackerConfig(_ context.Context, termID string) (db.TrackerConfigRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.configErr != nil {
		return db.TrackerConfigRow{}, s.configErr
	}
	cfg, ok := s.configs[termID]
	if !ok {
		return db.TrackerConfigRow{}, db.ErrNoRows
	}
	return cfg, nil
}

func (s *stubTrackerStore) GetTerm(_ context.Context, termID string) (db.TermRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	term, ok := s.terms[termID]
	if !ok {
		return db.TermRow{}, db.ErrNoRows
	}
	return term, nil
}

func (s *stubTrackerStore) ListEnabledSourceRules(_ context.Context, names []string) ([]db.SourceRuleRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rulesErr != nil {
		return nil, s.rulesErr
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	var out []db.SourceRuleRow
	for _, rule := range s.rules {
		if rule.Enabled && wanted[rule.Name] {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (s *stubTrackerStore) UpsertSightings(_ context.Context, rows []db.UpsertSightingParams) (db.UpsertSightingsResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result db.UpsertSightingsResult
	for _, row := range rows {
		if s.failURLs[row.URL] {
			result.Failed = append(result.Failed, errors.New("write refused"))
			continue
		}
		key := row.TermID + "|" + row.URL
		if _, ok := s.sightings[key]; ok {
			result.Updated++
		} else {
			result.Inserted++
		}
		s.sightings[key] = row
	}
	if len(result.Failed) > 0 {
		return result, errors.Join(result.Failed...)
	}
	return result, nil
}

func (s *stubTrackerStore) UpdateTrackerLastRun(_ context.Context, termID string, ranAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun[termID] = ranAt
	return nil
}

func (s *stubTrackerStore) InsertTrackerRun(_ context.Context, runUUID, _ string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, runUUID)
	return nil
}

func (s *stubTrackerStore) FinishTrackerRun(_ context.Context, res db.TrackerRunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[res.RunUUID] = res
	return nil
}

func (s *stubTrackerStore) ListStaleTrackers(_ context.Context, _ time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{"term-rizz", "term-gone"}
	if limit < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

type stubSource struct {
	name  string
	hits  []RawHit
	block bool
	delay time.Duration

	mu        sync.Mutex
	calls     int
	queries   []string
	allowlist []string
	limit     int

	active atomic.Int32
	peak   atomic.Int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Search(ctx context.Context, queries []string, allowlist []string, maxResults int) []RawHit {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		old := s.peak.Load()
		if n <= old || s.peak.CompareAndSwap(old, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls++
	s.queries = append([]string(nil), queries...)
	s.allowlist = allowlist
	s.limit = maxResults
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return nil
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil
		}
	}
	return s.hits
}

func rizzHit() RawHit {
	return RawHit{
		URL:       "https://Example.com/what-is-rizz#top",
		Title:     "What does rizz mean",
		Snippet:   "Rizz is slang for charm",
		Source:    "web_search",
		MatchType: MatchTypeWebSearch,
	}
}

func defaultRules() []db.SourceRuleRow {
	return []db.SourceRuleRow{
		{Name: "news_api", Enabled: true, MinScore: 10},
		{Name: "web_search", Enabled: true, MinScore: 10},
	}
}

func newTestRunner(store Store, sources ...Source) *Runner {
	return NewRunner(store, zerolog.Nop(), Options{
		Sources:        sources,
		SourceTimeout:  200 * time.Millisecond,
		DetectLanguage: func(string) string { return "en" },
		Now:            func() time.Time { return runNow },
	})
}

func TestRun_RizzEndToEnd(t *testing.T) {
	t.Parallel()

	store := newStubTrackerStore()
	store.addTracker("term-rizz", "rizz", "web_search", "news_api")
	store.rules = defaultRules()

	brand := RawHit{
		URL:       "https://brand.example/riz",
		Title:     "Riz Company trademark filing",
		Source:    "web_search",
		MatchType: MatchTypeWebSearch,
	}
	// Same page as rizzHit under another host casing and fragment, from the
	// other source and with a weaker match.
	repost := RawHit{
		URL:       "https://EXAMPLE.com/what-is-rizz#comments",
		Title:     "The rizzler strikes again",
		Source:    "news_api",
		MatchType: MatchTypeNewsSearch,
	}
	web := &stubSource{name: "web_search", hits: []RawHit{rizzHit(), brand}}
	news := &stubSource{name: "news_api", hits: []RawHit{repost}}
	runner := newTestRunner(store, web, news)

	summary, err := runner.Run(context.Background(), "term-rizz")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.sightings) != 1 {
		t.Fatalf("expected exactly one stored sighting, got %d: %v", len(store.sightings), store.sightings)
	}

	if summary.TermID != "term-rizz" || summary.RunID == "" {
		t.Fatalf("unexpected identity: %+v", summary)
	}
	if summary.QueriesGenerated != 7 {
		t.Fatalf("unexpected queries generated: got %d want 7", summary.QueriesGenerated)
	}
	if summary.RawHitCount != 3 || summary.ProcessedCount != 1 || summary.SightingsWritten != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.MinScoreApplied != 10 {
		t.Fatalf("unexpected min score: got %d want 10", summary.MinScoreApplied)
	}

	if web.calls != 1 || news.calls != 1 {
		t.Fatalf("unexpected source calls: web=%d news=%d", web.calls, news.calls)
	}
	if len(web.queries) != 7 || web.limit != DefaultPerRunCap {
		t.Fatalf("unexpected source request: queries=%d limit=%d", len(web.queries), web.limit)
	}

	row, ok := store.sightings["term-rizz|https://example.com/what-is-rizz"]
	if !ok {
		t.Fatalf("expected sighting keyed by canonical url, got %v", store.sightings)
	}
	if row.Score != 60 {
		t.Fatalf("unexpected sighting score: got %d want 60", row.Score)
	}
	if row.Link != "https://Example.com/what-is-rizz#top" {
		t.Fatalf("unexpected sighting link: %q", row.Link)
	}
	if row.Language == nil || *row.Language != "en" {
		t.Fatalf("expected detected language on sighting")
	}
	if !row.SeenAt.Equal(runNow) {
		t.Fatalf("unexpected seen at: %s", row.SeenAt)
	}
	if !store.lastRun["term-rizz"].Equal(runNow) {
		t.Fatalf("expected last_run_at updated")
	}

	run, ok := store.runs[summary.RunID]
	if !ok {
		t.Fatalf("expected run history record")
	}
	if run.Status != db.RunStatusCompleted || run.SightingsWritten != 1 || run.QueriesGenerated != 7 || run.ResultsFound != 3 {
		t.Fatalf("unexpected run record: %+v", run)
	}
}

func TestRun_AppliesMostPermissiveMinScore(t *testing.T) {
	t.Parallel()

	store := newStubTrackerStore()
	store.addTracker("term-rizz", "rizz", "web_search", "news_api")
	store.rules = []db.SourceRuleRow{
		{Name: "news_api", Enabled: true, MinScore: 40},
		{Name: "web_search", Enabled: true, MinScore: 20},
	}

	web := &stubSource{name: "web_search", hits: []RawHit{
		{URL: "https://example.com/strong", Title: "the rizzler", Source: "web_search", MatchType: MatchTypeWebSearch},
		{URL: "https://example.com/weak", Title: "riz", Source: "web_search", MatchType: MatchTypeWebSearch},
	}}
	runner := newTestRunner(store, web, &stubSource{name: "news_api"})

	summary, err := runner.Run(context.Background(), "term-rizz")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.MinScoreApplied != 20 {
		t.Fatalf("unexpected min score: got %d want 20", summary.MinScoreApplied)
	}
	if summary.RawHitCount != 2 || summary.ProcessedCount != 1 || summary.SightingsWritten != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if _, ok := store.sightings["term-rizz|https://example.com/weak"]; ok {
		t.Fatalf("did not expect below-threshold hit to be persisted")
	}
}

func TestRun_NoRulesUsesZeroThreshold(t *testing.T) {
	t.Parallel()

	store := newStubTrackerStore()
	store.addTracker("term-rizz", "rizz")

	summary, err := newTestRunner(store).Run(context.Background(), "term-rizz")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.MinScoreApplied != 0 || summary.RawHitCount != 0 || summary.SightingsWritten != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.QueriesGenerated != 7 {
		t.Fatalf("unexpected queries generated: %d", summary.QueriesGenerated)
	}
}

func TestRun_SourceTimeoutDoesNotFailRun(t *testing.T) {
	t.Parallel()

	store := newStubTrackerStore()
	store.addTracker("term-rizz", "rizz", "web_search", "news_api")
	store.rules = defaultRules()

	web := &stubSource{name: "web_search", hits: []RawHit{rizzHit()}}
	news := &stubSource{name: "news_api", block: true}
	runner := NewRunner(store, zerolog.Nop(), Options{
		Sources:       []Source{web, news},
		SourceTimeout: 20 * time.Millisecond,
		Now:           func() time.Time { return runNow },
	})

	summary, err := runner.Run(context.Background(), "term-rizz")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RawHitCount != 1 || summary.SightingsWritten != 1 {
		t.Fatalf("expected web hits to survive news timeout: %+v", summary)
	}
}

func TestRun_IsIdempotentPerURL(t *testing.T) {
	t.Parallel()

	store := newStubTrackerStore()
	store.addTracker("term-rizz", "rizz", "web_search")
	store.rules = defaultRules()
	runner := newTestRunner(store, &stubSource{name: "web_search", hits: []RawHit{rizzHit()}})

	for i := range 2 {
		summary, err := runner.Run(context.Background(), "term-rizz")
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if summary.SightingsWritten != 1 {
			t.Fatalf("run %d: unexpected written count %d", i, summary.SightingsWritten)
		}
	}
	if len(store.sightings) != 1 {
		t.Fatalf("expected one sighting row after repeat runs, got %d", len(store.sightings))
	}
	if len(store.runs) != 2 {
		t.Fatalf("expected two run records, got %d", len(store.runs))
	}
}

func TestRun_NotFound(t *testing.T) {
	t.Parallel()

	store := newStubTrackerStore()
	store.configs["term-orphan"] = db.TrackerConfigRow{TermID: "term-orphan"}
	source := &stubSource{name: "web_search"}
	runner := newTestRunner(store, source)

	for _, termID := range []string{"term-missing", "term-orphan", "  "} {
		_, err := runner.Run(context.Background(), termID)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("%q: expected ErrNotFound, got %v", termID, err)
		}
	}
	if source.calls != 0 {
		t.Fatalf("did not expect sources to be queried, got %d calls", source.calls)
	}
	if len(store.runs) != 0 {
		t.Fatalf("did not expect run records for missing trackers")
	}
}

func TestRun_StoreErrorIsInternal(t *testing.T) {
	t.Parallel()

	store := newStubTrackerStore()
	store.addTracker("term-rizz", "rizz", "web_search")
	store.rulesErr = errors.New("connection reset")

	_, err := newTestRunner(store).Run(context.Background(), "term-rizz")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("did not expect ErrNotFound for store failure: %v", err)
	}
}

func TestRun_PerRunCapAndResultCap(t *testing.T) {
	t.Parallel()

	three, two := 3, 2
	store := newStubTrackerStore()
	store.addTracker("term-rizz", "rizz", "web_search")
	store.rules = []db.SourceRuleRow{{Name: "web_search", Enabled: true, PerRunCap: &three}}

	source := &stubSource{name: "web_search", hits: []RawHit{
		{URL: "https://example.com/1", Title: "rizz"},
		{URL: "https://example.com/2", Title: "rizz"},
		{URL: "https://example.com/3", Title: "rizz"},
		{URL: "https://example.com/4", Title: "rizz"},
	}}
	runner := newTestRunner(store, source)

	summary, err := runner.Run(context.Background(), "term-rizz")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if source.limit != 3 || summary.RawHitCount != 3 {
		t.Fatalf("expected rule cap of 3: limit=%d found=%d", source.limit, summary.RawHitCount)
	}

	cfg := store.configs["term-rizz"]
	cfg.ResultCap = &two
	store.configs["term-rizz"] = cfg

	summary, err = runner.Run(context.Background(), "term-rizz")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if source.limit != 2 || summary.RawHitCount != 2 {
		t.Fatalf("expected tracker result cap of 2: limit=%d found=%d", source.limit, summary.RawHitCount)
	}
}

func TestRun_BlocklistAndUnknownSource(t *testing.T) {
	t.Parallel()

	store := newStubTrackerStore()
	store.addTracker("term-rizz", "rizz", "web_search", "tiktok")
	store.rules = []db.SourceRuleRow{
		{Name: "tiktok", Enabled: true},
		{Name: "web_search", Enabled: true, DomainAllowlist: []string{"example.com"}, DomainBlocklist: []string{"spam.net"}},
	}

	source := &stubSource{name: "web_search", hits: []RawHit{
		rizzHit(),
		{URL: "https://cdn.spam.net/rizz", Title: "rizz", Source: "web_search", MatchType: MatchTypeWebSearch},
	}}
	summary, err := newTestRunner(store, source).Run(context.Background(), "term-rizz")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RawHitCount != 1 || summary.SightingsWritten != 1 {
		t.Fatalf("expected blocked hit dropped: %+v", summary)
	}
	if len(source.allowlist) != 1 || source.allowlist[0] != "example.com" {
		t.Fatalf("expected allowlist passed to source, got %v", source.allowlist)
	}
}

func TestRun_WriteFailureIsLoggedNotFatal(t *testing.T) {
	t.Parallel()

	store := newStubTrackerStore()
	store.addTracker("term-rizz", "rizz", "web_search")
	store.rules = defaultRules()
	store.failURLs["https://example.com/bad"] = true

	source := &stubSource{name: "web_search", hits: []RawHit{
		rizzHit(),
		{URL: "https://example.com/bad", Title: "rizz", Source: "web_search", MatchType: MatchTypeWebSearch},
	}}
	summary, err := newTestRunner(store, source).Run(context.Background(), "term-rizz")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.ProcessedCount != 2 || summary.SightingsWritten != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if run := store.runs[summary.RunID]; run.WriteErrors != 1 {
		t.Fatalf("expected one write error on run record, got %d", run.WriteErrors)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	store := newStubTrackerStore()
	store.addTracker("term-rizz", "rizz", "web_search")
	store.rules = defaultRules()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRunner(store, &stubSource{name: "web_search", block: true}).Run(ctx, "term-rizz")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(store.sightings) != 0 {
		t.Fatalf("did not expect sightings on cancelled run")
	}
	for _, run := range store.runs {
		if run.Status != db.RunStatusFailed {
			t.Fatalf("expected failed run record, got %q", run.Status)
		}
	}
}

func TestRun_SerializesSameTerm(t *testing.T) {
	t.Parallel()

	store := newStubTrackerStore()
	store.addTracker("term-rizz", "rizz", "web_search")
	store.rules = defaultRules()
	source := &stubSource{name: "web_search", hits: []RawHit{rizzHit()}, delay: 10 * time.Millisecond}
	runner := newTestRunner(store, source)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := runner.Run(context.Background(), "term-rizz"); err != nil {
				t.Errorf("run: %v", err)
			}
		}()
	}
	wg.Wait()

	if source.peak.Load() != 1 {
		t.Fatalf("expected serialized runs, saw %d concurrent searches", source.peak.Load())
	}
	if len(store.sightings) != 1 {
		t.Fatalf("expected one sighting, got %d", len(store.sightings))
	}
}

func TestRunStale(t *testing.T) {
	t.Parallel()

	store := newStubTrackerStore()
	store.addTracker("term-rizz", "rizz", "web_search")
	store.rules = defaultRules()
	runner := newTestRunner(store, &stubSource{name: "web_search", hits: []RawHit{rizzHit()}})

	result, err := runner.RunStale(context.Background(), store, time.Hour, 10)
	if err != nil {
		t.Fatalf("run stale: %v", err)
	}
	if result.Candidates != 2 || result.Completed != 1 || result.Failed != 1 || result.Sightings != 1 {
		t.Fatalf("unexpected sweep result: %+v", result)
	}

	if _, err := runner.RunStale(context.Background(), store, 0, 10); err == nil {
		t.Fatalf("expected error for non-positive stale-after")
	}
}
