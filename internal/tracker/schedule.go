package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StaleLister finds trackers due for a run.
type StaleLister interface {
	ListStaleTrackers(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

type SweepResult struct {
	Candidates int
	Completed  int
	Failed     int
	Sightings  int
}

// RunStale runs every tracker that has not run within staleAfter, oldest
// first, one at a time. A failing tracker is logged and counted; the sweep
// only stops early when ctx is done.
func (r *Runner) RunStale(ctx context.Context, lister StaleLister, staleAfter time.Duration, limit int) (SweepResult, error) {
	var result SweepResult
	if lister == nil {
		return result, fmt.Errorf("stale tracker lister is nil")
	}
	if staleAfter <= 0 {
		return result, fmt.Errorf("stale-after must be > 0")
	}

	cutoff := r.now().UTC().Add(-staleAfter)
	termIDs, err := lister.ListStaleTrackers(ctx, cutoff, limit)
	if err != nil {
		return result, fmt.Errorf("list stale trackers: %w", err)
	}
	result.Candidates = len(termIDs)

	for _, termID := range termIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		summary, err := r.Run(ctx, termID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			result.Failed++
			r.logger.Error().Err(err).Str("term_id", termID).Msg("scheduled tracker run failed")
			continue
		}
		result.Completed++
		result.Sightings += summary.SightingsWritten
	}

	return result, nil
}
