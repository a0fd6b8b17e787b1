// package tasks implements the reconciliation batch that checks stored track pairs against the catalog.
//
// The core abstraction is [PlaylistEngine], which drives a full run over the record store.
// Runs emit progress updates via channels for non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/forro/internal/models"
	"github.com/desertthunder/forro/internal/repositories"
	"github.com/desertthunder/forro/internal/services"
	"github.com/desertthunder/forro/internal/shared"
)

// PairFailure is a pair whose catalog request failed during a run.
type PairFailure struct {
	Index int
	Pair  models.TrackPair
	Err   error
}

// RunSummary contains the counts of a reconciliation run.
type RunSummary struct {
	RunID             string
	Mode              Mode
	DryRun            bool
	Total             int                // pairs in the store
	AlreadyInPlaylist int                // in the playlist before the run
	Added             int                // added to the playlist this run
	Unavailable       int                // marked unavailable this run
	Checked           int                // both sides found without adding (check mode or dry run)
	Skipped           int                // resolved pairs that needed no catalog calls
	InPlaylist        int                // in the playlist after the run
	NotFound          []models.TrackPair // pairs marked unavailable this run
	Failures          []PairFailure      // pairs left unchanged by a catalog error
	Interrupted       bool               // the run stopped before the last pair
	Duration          time.Duration
}

// Failed returns the number of pairs left unchanged by a catalog error.
func (s *RunSummary) Failed() int {
	return len(s.Failures)
}

// RunOpts configures a single [PlaylistEngine.Run].
type RunOpts struct {
	PlaylistID  string
	Mode        Mode
	DryRun      bool
	LookupDelay time.Duration
	// WaitForProgress makes every update wait for the consumer instead of being dropped
	// when the channel is full. Only set it when something drains the channel for the whole run.
	WaitForProgress bool
}

// PlaylistEngine runs reconciliation batches over a record store.
// Contains dependencies on the store and the catalog, both injected at construction.
type PlaylistEngine struct {
	store    repositories.PairStore
	catalog  services.Catalog
	recorder LookupRecorder
	logger   *log.Logger
	now      func() time.Time
}

// NewPlaylistEngine creates a new PlaylistEngine with the provided store and catalog.
func NewPlaylistEngine(store repositories.PairStore, catalog services.Catalog, logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &PlaylistEngine{store: store, catalog: catalog, logger: logger, now: time.Now}
}

// SetLookupRecorder enables recording of catalog searches. Pass nil to disable.
func (e *PlaylistEngine) SetLookupRecorder(r LookupRecorder) {
	e.recorder = r
}

// sendProgress sends a progress update through the channel. Unless wait is set it never blocks:
// updates are dropped while the channel is full. A waiting send still gives up on cancellation.
func (e *PlaylistEngine) sendProgress(ctx context.Context, progress chan<- ProgressUpdate, update ProgressUpdate, wait bool) {
	if progress == nil {
		return
	}
	if wait {
		select {
		case progress <- update:
		case <-ctx.Done():
		}
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run loads every pair, reconciles them one at a time in stored order and returns the summary.
//
// Catalog failures are isolated to their pair and listed in [RunSummary.Failures]. Store errors abort the run.
// Cancellation is honored between pairs: the partial summary is returned with Interrupted set, together with the context error.
func (e *PlaylistEngine) Run(ctx context.Context, opts RunOpts, progress chan<- ProgressUpdate) (*RunSummary, error) {
	if e.store == nil {
		return nil, fmt.Errorf("%w: record store not initialized", shared.ErrServiceUnavailable)
	}
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Mode == ModeBuild && !opts.DryRun && opts.PlaylistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	start := e.now()
	runID := shared.GenerateID()
	logger := shared.WithLogger(e.logger, "run_id", runID)
	summary := &RunSummary{RunID: runID, Mode: opts.Mode, DryRun: opts.DryRun}

	e.sendProgress(ctx, progress, loadStoreUpdate(e.store.Location()), opts.WaitForProgress)
	pairs, err := e.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load track pairs: %w", err)
	}

	summary.Total = len(pairs)
	for _, p := range pairs {
		if p.InPlaylist {
			summary.AlreadyInPlaylist++
		}
	}
	summary.InPlaylist = summary.AlreadyInPlaylist
	logger.Info("starting run", "mode", opts.Mode, "dry_run", opts.DryRun, "pairs", summary.Total, "in_playlist", summary.AlreadyInPlaylist)

	reconciler := NewReconciler(e.catalog, e.store, ReconcilerOpts{
		PlaylistID:  opts.PlaylistID,
		Mode:        opts.Mode,
		DryRun:      opts.DryRun,
		LookupDelay: opts.LookupDelay,
		RunID:       runID,
		Recorder:    e.recorder,
		Logger:      logger,
	})

	for i, pair := range pairs {
		if err := ctx.Err(); err != nil {
			summary.Interrupted = true
			summary.Duration = e.now().Sub(start)
			logger.Warn("run interrupted", "processed", i, "pairs", summary.Total)
			return summary, err
		}

		e.sendProgress(ctx, progress, startPairUpdate(i+1, summary.Total, pair), opts.WaitForProgress)
		result, err := reconciler.Process(ctx, i, pair)
		if err != nil {
			summary.Duration = e.now().Sub(start)
			return summary, err
		}

		summary.tally(result)
		e.sendProgress(ctx, progress, pairResultUpdate(i+1, summary.Total, result), opts.WaitForProgress)
	}

	summary.Duration = e.now().Sub(start)
	e.sendProgress(ctx, progress, completeUpdate(summary), opts.WaitForProgress)
	logger.Info("run complete", "added", summary.Added, "unavailable", summary.Unavailable, "failed", summary.Failed(), "in_playlist", summary.InPlaylist)
	return summary, nil
}

func (s *RunSummary) tally(result PairResult) {
	switch result.Outcome {
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeAdded:
		s.Added++
		s.InPlaylist++
	case OutcomeUnavailable:
		s.Unavailable++
		s.NotFound = append(s.NotFound, result.After)
	case OutcomeAvailable:
		s.Checked++
	case OutcomeFailed:
		s.Failures = append(s.Failures, PairFailure{Index: result.Index, Pair: result.Before, Err: result.Err})
	}
}
