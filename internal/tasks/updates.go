package tasks

import (
	"fmt"

	"github.com/desertthunder/forro/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data ([PairResult] for ReconcilePair)
}

// Operation phase enumeration
type Phase int

const (
	LoadStore Phase = iota
	ReconcilePair
	Complete
)

func (p Phase) String() string {
	switch p {
	case LoadStore:
		return "load_store"
	case ReconcilePair:
		return "reconcile_pair"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func loadStoreUpdate(location string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadStore,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loading track pairs from %s...", location),
	}
}

func startPairUpdate(step, total int, pair models.TrackPair) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReconcilePair,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, pair),
	}
}

func pairResultUpdate(step, total int, result PairResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s: %s", step, total, result.After, result.Outcome)
	if result.Err != nil {
		msg = fmt.Sprintf("[%d/%d] %s: %s (%v)", step, total, result.Before, result.Outcome, result.Err)
	}
	return ProgressUpdate{
		Phase:   ReconcilePair,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    result,
	}
}

func completeUpdate(summary *RunSummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    summary.Total,
		Total:   summary.Total,
		Message: fmt.Sprintf("Processed %d pairs: %d added, %d unavailable, %d failed", summary.Total, summary.Added, summary.Unavailable, len(summary.Failures)),
		Data:    summary,
	}
}
