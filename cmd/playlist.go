package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/forro/internal/formatter"
	"github.com/desertthunder/forro/internal/shared"
	"github.com/desertthunder/forro/internal/tasks"
)

// PlaylistBuild runs one build batch against the target playlist.
func (r *Runner) PlaylistBuild(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("playlist-id")
	if playlistID == "" {
		playlistID = r.config.Playlist.ID
	}
	return r.runPlaylist(ctx, cmd, tasks.RunOpts{
		PlaylistID: playlistID,
		Mode:       tasks.ModeBuild,
		DryRun:     cmd.Bool("dry-run"),
	})
}

// PlaylistCheck runs an availability-only batch.
func (r *Runner) PlaylistCheck(ctx context.Context, cmd *cli.Command) error {
	return r.runPlaylist(ctx, cmd, tasks.RunOpts{
		Mode:   tasks.ModeCheck,
		DryRun: cmd.Bool("dry-run"),
	})
}

func (r *Runner) runPlaylist(ctx context.Context, cmd *cli.Command, opts tasks.RunOpts) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	catalog, err := r.requireCatalog()
	if err != nil {
		return err
	}

	store, err := r.pairStore(ctx)
	if err != nil {
		return err
	}

	opts.LookupDelay = r.config.Playlist.LookupDelay()
	opts.WaitForProgress = true
	engine := tasks.NewPlaylistEngine(store, catalog, r.logger)
	if r.lookups != nil {
		engine.SetLookupRecorder(r.lookups)
	}

	quiet := cmd.Bool("quiet") || format == formatter.FormatJSON
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if !quiet {
				r.renderProgress(update)
			}
		}
	}()

	summary, runErr := engine.Run(ctx, opts, progressCh)
	close(progressCh)
	<-done

	if summary != nil {
		if err := r.renderSummary(summary, format); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	if tokenExpired(summary) {
		r.writeErr("%s the Spotify token was rejected; run 'forro auth' and try again\n", r.palette.Warn("Warning:"))
	}
	return nil
}

func (r *Runner) renderProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.LoadStore:
		r.writePlain("%s\n", r.palette.Help(update.Message))
	case tasks.ReconcilePair:
		if result, ok := update.Data.(tasks.PairResult); ok {
			label := r.palette.OK(result.Outcome.String())
			switch result.Outcome {
			case tasks.OutcomeFailed:
				label = r.palette.Err(result.Outcome.String())
			case tasks.OutcomeUnavailable:
				label = r.palette.Warn(result.Outcome.String())
			case tasks.OutcomeSkipped:
				label = r.palette.Help(result.Outcome.String())
			}
			r.writePlain("  [%d/%d] %s %s\n", update.Step, update.Total, label, result.Before)
		}
	case tasks.Complete:
		r.writePlain("\n")
	}
}

func (r *Runner) renderSummary(summary *tasks.RunSummary, format formatter.Format) error {
	data, err := formatter.Summary(summary, format)
	if err != nil {
		return err
	}
	if format == formatter.FormatText {
		r.writePlain("%s\n", r.palette.Title("═══════════════════════════════════════"))
	}
	return r.writeBytes(data)
}

func tokenExpired(summary *tasks.RunSummary) bool {
	for _, f := range summary.Failures {
		if errors.Is(f.Err, shared.ErrTokenExpired) || errors.Is(f.Err, shared.ErrNotAuthenticated) {
			return true
		}
	}
	return false
}

type lookupRow struct {
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Found      bool      `json:"found"`
	CatalogURI string    `json:"catalog_uri,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PlaylistLookups prints the lookup log of one run.
func (r *Runner) PlaylistLookups(ctx context.Context, cmd *cli.Command) error {
	runID := cmd.String("run-id")
	if runID == "" {
		return fmt.Errorf("%w: --run-id", shared.ErrMissingArgument)
	}

	if _, err := r.pairStore(ctx); err != nil {
		return err
	}
	if r.lookups == nil {
		return fmt.Errorf("%w: the lookup log needs store driver %q", shared.ErrInvalidConfig, shared.StoreDriverSQLite)
	}

	entries, err := r.lookups.List(ctx, runID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		rows := make([]lookupRow, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, lookupRow{
				Title:      e.Title,
				Artist:     e.Artist,
				Found:      e.Found,
				CatalogURI: e.CatalogURI,
				Error:      e.Error,
				CreatedAt:  e.CreatedAt,
			})
		}
		return r.writeJSON(rows, true)
	}

	r.writePlain("Run %s: %d lookups\n", runID, len(entries))
	for i, e := range entries {
		status := r.palette.OK("found")
		detail := e.CatalogURI
		switch {
		case e.Error != "":
			status = r.palette.Err("error")
			detail = e.Error
		case !e.Found:
			status = r.palette.Warn("missing")
		}
		r.writePlain("%3d. %s - %s [%s] %s\n", i+1, e.Artist, e.Title, status, detail)
	}
	return nil
}
