package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/forro/internal/formatter"
	"github.com/desertthunder/forro/internal/models"
	"github.com/desertthunder/forro/internal/repositories"
	"github.com/desertthunder/forro/internal/shared"
)

// PairsAdd validates a pair and appends it to the store.
//
// Validation failures and duplicates are printed to stderr and returned, so the process exits 1.
func (r *Runner) PairsAdd(ctx context.Context, cmd *cli.Command) error {
	pair := models.NewTrackPair(
		cmd.String("brazilian-artist"),
		cmd.String("brazilian-track"),
		cmd.String("original-artist"),
		cmd.String("original-track"),
		cmd.String("source"),
	)

	store, err := r.pairStore(ctx)
	if err != nil {
		return err
	}

	existing, err := store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load track pairs: %w", err)
	}

	row, err := store.Append(ctx, pair)
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		for _, msg := range verr.Messages {
			r.writeErr("%s %s\n", r.palette.Err("Validation error:"), msg)
		}
		return err
	case errors.Is(err, shared.ErrDuplicatePair):
		r.writeErr("%s %v\n", r.palette.Warn("Warning:"), err)
		return err
	case err != nil:
		return err
	}

	r.logger.Info("pair added", "pair", row.String(), "store", store.Location())
	if err := r.writePlain("%s %s\n", r.palette.OK("Added:"), row); err != nil {
		return err
	}

	for _, s := range models.SimilarPairs(existing, row, cmd.Float("similarity")) {
		r.logger.Warn("possible near-duplicate", "existing", s.Pair.String(), "score", fmt.Sprintf("%.2f", s.Score))
		r.writeErr("%s similar to existing pair %s (%.2f)\n", r.palette.Warn("Warning:"), s.Pair, s.Score)
	}
	return nil
}

// PairsList prints the store, optionally filtered by status.
func (r *Runner) PairsList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	store, err := r.pairStore(ctx)
	if err != nil {
		return err
	}

	pairs, err := store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load track pairs: %w", err)
	}

	filtered, err := formatter.FilterPairs(pairs, cmd.String("status"))
	if err != nil {
		return err
	}

	data, err := formatter.Pairs(filtered, format)
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteExport(path, data); err != nil {
			return err
		}
		r.logger.Info("pairs exported", "path", path, "pairs", len(filtered))
		return r.writePlain("%s %d pairs written to %s\n", r.palette.OK("✓"), len(filtered), path)
	}
	return r.writeBytes(data)
}

// rejectedRow is an import row that was not merged.
type rejectedRow struct {
	Row    int
	Pair   models.TrackPair
	Reason error
}

// mergePairs appends every valid, previously unseen row of incoming to existing.
// Rows without an added_at timestamp are stamped with stamp.
func mergePairs(existing, incoming []models.TrackPair, stamp func(*models.TrackPair)) ([]models.TrackPair, []rejectedRow) {
	merged := append([]models.TrackPair(nil), existing...)
	var rejected []rejectedRow

	for i, p := range incoming {
		p = p.Trimmed()
		if err := p.Validate(); err != nil {
			rejected = append(rejected, rejectedRow{Row: i + 2, Pair: p, Reason: err})
			continue
		}
		if dup, ok := models.FindDuplicate(merged, p); ok {
			rejected = append(rejected, rejectedRow{Row: i + 2, Pair: p, Reason: models.DuplicateError(*dup)})
			continue
		}
		if p.AddedAt == "" {
			stamp(&p)
		}
		merged = append(merged, p)
	}
	return merged, rejected
}

// PairsImport merges another store-format CSV into the store and rewrites it in one step.
func (r *Runner) PairsImport(ctx context.Context, cmd *cli.Command) error {
	file := cmd.String("file")
	if file == "" {
		return fmt.Errorf("%w: --file", shared.ErrMissingArgument)
	}
	if _, err := os.Stat(file); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	incoming, err := repositories.NewCSVStore(file).LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	store, err := r.pairStore(ctx)
	if err != nil {
		return err
	}

	existing, err := store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load track pairs: %w", err)
	}

	merged, rejected := mergePairs(existing, incoming, func(p *models.TrackPair) { p.Stamp(r.now()) })
	for _, rej := range rejected {
		r.writeErr("%s row %d %s: %v\n", r.palette.Warn("Skipped"), rej.Row, rej.Pair, rej.Reason)
	}

	imported := len(merged) - len(existing)
	if cmd.Bool("dry-run") {
		return r.writePlain("Would import %d pairs (%d rejected)\n", imported, len(rejected))
	}

	if imported > 0 {
		if err := store.WriteAll(ctx, merged); err != nil {
			return fmt.Errorf("failed to write track pairs: %w", err)
		}
	}

	r.logger.Info("pairs imported", "file", file, "imported", imported, "rejected", len(rejected))
	return r.writePlain("%s Imported %d pairs (%d rejected)\n", r.palette.OK("✓"), imported, len(rejected))
}
