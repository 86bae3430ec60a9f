package tracker

import (
	"sort"
	"strings"
	"time"
)

// duplicatePenalty pushes a losing duplicate below the zero-score floor so the
// final filter removes it without a second pass.
const duplicatePenalty = 100

// DedupKey canonicalizes a hit URL: fragment dropped, lowercased.
func DedupKey(rawURL string) string {
	key := strings.TrimSpace(rawURL)
	if idx := strings.IndexByte(key, '#'); idx >= 0 {
		key = key[:idx]
	}
	return strings.ToLower(key)
}

// Process scores every hit, collapses hits sharing a dedup key onto the
// highest-scoring one, drops non-positive scores and returns the survivors
// best first. On equal scores the hit seen first wins, and equal scores keep
// their input order.
func Process(hits []RawHit, term string, now time.Time) []ScoredHit {
	scored := make([]ScoredHit, 0, len(hits))
	best := make(map[string]int, len(hits))

	for _, hit := range hits {
		key := DedupKey(hit.URL)
		if key == "" {
			continue
		}
		candidate := ScoredHit{
			RawHit: hit,
			Key:    key,
			Score:  Score(hit, term, now),
		}

		idx, seen := best[key]
		if !seen {
			best[key] = len(scored)
			scored = append(scored, candidate)
			continue
		}

		if candidate.Score > scored[idx].Score {
			scored[idx].Score -= duplicatePenalty
			best[key] = len(scored)
			scored = append(scored, candidate)
			continue
		}
		candidate.Score -= duplicatePenalty
		scored = append(scored, candidate)
	}

	out := scored[:0]
	for _, hit := range scored {
		if hit.Score > 0 {
			out = append(out, hit)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
