package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/forro/internal/models"
	"github.com/desertthunder/forro/internal/repositories"
	"github.com/desertthunder/forro/internal/services"
	"github.com/desertthunder/forro/internal/shared"
)

// DefaultLookupDelay is the minimum pause between two catalog calls.
const DefaultLookupDelay = 100 * time.Millisecond

// Mode selects how far the per-pair state machine goes.
type Mode int

const (
	// ModeBuild looks up both sides and adds matched pairs to the playlist.
	ModeBuild Mode = iota
	// ModeCheck only records availability; the playlist is never modified.
	ModeCheck
)

func (m Mode) String() string {
	if m == ModeCheck {
		return "check"
	}
	return "build"
}

// Outcome is the result of reconciling one pair.
type Outcome int

const (
	OutcomeSkipped     Outcome = iota // already resolved, no catalog calls
	OutcomeAdded                      // both sides found and added to the playlist
	OutcomeUnavailable                // one side has no catalog match
	OutcomeAvailable                  // both sides found, nothing added (check mode or dry run)
	OutcomeFailed                     // catalog error; nothing persisted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeAdded:
		return "added"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeAvailable:
		return "available"
	case OutcomeFailed:
		return "failed"
	default:
		return ""
	}
}

// PairResult describes what happened to one stored pair.
type PairResult struct {
	Index     int              // 0-based position in the store
	Before    models.TrackPair // pair as loaded
	After     models.TrackPair // reconciled pair; written to the store only when Persisted
	Outcome   Outcome
	Err       error // catalog error when Outcome is OutcomeFailed
	Persisted bool
}

// LookupRecorder receives every catalog search made by a run.
//
// Recording is best effort: errors are logged and never affect reconciliation.
type LookupRecorder interface {
	RecordLookup(ctx context.Context, runID, title, artist, uri string, found bool, err error) error
}

// ReconcilerOpts configures a [Reconciler].
type ReconcilerOpts struct {
	PlaylistID  string
	Mode        Mode
	DryRun      bool          // run lookups but never add or persist
	LookupDelay time.Duration // 0 disables the pause
	RunID       string
	Recorder    LookupRecorder
	Logger      *log.Logger
}

// Reconciler applies the per-pair state machine and persists each result through the store.
type Reconciler struct {
	catalog services.Catalog
	store   repositories.PairStore
	limiter *rate.Limiter
	opts    ReconcilerOpts
	logger  *log.Logger
}

// NewReconciler creates a Reconciler. The catalog and store are used as given; nothing is shared between reconcilers.
func NewReconciler(catalog services.Catalog, store repositories.PairStore, opts ReconcilerOpts) *Reconciler {
	limit := rate.Inf
	if opts.LookupDelay > 0 {
		limit = rate.Every(opts.LookupDelay)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Reconciler{
		catalog: catalog,
		store:   store,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		logger:  logger,
	}
}

// Process reconciles the pair stored at index and persists the outcome with ReplaceAt.
//
// A catalog failure is reported in the result and leaves the store untouched. The returned error is
// reserved for store failures, which must abort the batch.
func (r *Reconciler) Process(ctx context.Context, index int, pair models.TrackPair) (PairResult, error) {
	result := r.reconcile(ctx, pair)
	result.Index = index

	switch result.Outcome {
	case OutcomeSkipped:
		return result, nil
	case OutcomeFailed:
		r.logger.Warn("catalog request failed, pair left unchanged", "index", index, "pair", pair.String(), "error", result.Err)
		result.After = pair
		return result, nil
	}

	if r.opts.DryRun {
		return result, nil
	}

	// The catalog work is done; an interrupt must not lose it, or the next run repeats the add.
	if err := r.store.ReplaceAt(context.WithoutCancel(ctx), index, result.After); err != nil {
		result.After = pair
		return result, fmt.Errorf("failed to persist track pair %d: %w", index, err)
	}
	result.Persisted = true
	return result, nil
}

// reconcile runs the state machine on a working copy of pair. The store is not touched.
func (r *Reconciler) reconcile(ctx context.Context, pair models.TrackPair) PairResult {
	result := PairResult{Before: pair, After: pair}
	if pair.Resolved() {
		result.Outcome = OutcomeSkipped
		return result
	}

	work := pair
	fail := func(err error) PairResult {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}

	brazilian, err := r.lookup(ctx, work.BrazilianTrack, work.BrazilianArtist)
	if err != nil {
		return fail(err)
	}
	work.BrazilianHasSpotify = models.FromBool(brazilian != nil)
	if brazilian == nil {
		result.After = work
		result.Outcome = OutcomeUnavailable
		return result
	}

	original, err := r.lookup(ctx, work.OriginalTrack, work.OriginalArtist)
	if err != nil {
		return fail(err)
	}
	work.OriginalHasSpotify = models.FromBool(original != nil)
	if original == nil {
		result.After = work
		result.Outcome = OutcomeUnavailable
		return result
	}

	if r.opts.Mode == ModeCheck || r.opts.DryRun {
		result.After = work
		result.Outcome = OutcomeAvailable
		return result
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fail(err)
	}
	if err := r.catalog.AddToPlaylist(ctx, r.opts.PlaylistID, []string{brazilian.URI, original.URI}); err != nil {
		return fail(err)
	}

	work.InPlaylist = true
	result.After = work
	result.Outcome = OutcomeAdded
	return result
}

// lookup waits for the limiter, searches the catalog and records the call.
func (r *Reconciler) lookup(ctx context.Context, title, artist string) (*models.CatalogTrack, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	track, err := r.catalog.SearchTrack(ctx, title, artist)
	if err != nil && !errors.Is(err, shared.ErrLookupTransport) && ctx.Err() == nil {
		err = fmt.Errorf("%w: %w", shared.ErrLookupTransport, err)
	}

	r.record(ctx, title, artist, track, err)
	r.logger.Debug("catalog lookup", "catalog", r.catalog.Name(), "title", title, "artist", artist, "found", track != nil, "error", err)
	return track, err
}

func (r *Reconciler) record(ctx context.Context, title, artist string, track *models.CatalogTrack, lookupErr error) {
	if r.opts.Recorder == nil {
		return
	}

	var uri string
	if track != nil {
		uri = track.URI
	}
	if err := r.opts.Recorder.RecordLookup(context.WithoutCancel(ctx), r.opts.RunID, title, artist, uri, track != nil, lookupErr); err != nil {
		r.logger.Warn("failed to record lookup", "error", err)
	}
}
