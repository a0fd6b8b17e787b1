package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/desertthunder/forro/internal/models"
	"github.com/desertthunder/forro/internal/shared"
)

const selectPairs = `
	SELECT position, brazilian_artist, brazilian_track, original_artist, original_track,
		added_at, source, brazilian_has_spotify, original_has_spotify, in_playlist
	FROM track_pairs
	ORDER BY position ASC
`

const insertPair = `
	INSERT INTO track_pairs (brazilian_artist, brazilian_track, original_artist, original_track,
		added_at, source, brazilian_has_spotify, original_has_spotify, in_playlist)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// queryer is satisfied by both [*sql.DB] and [*sql.Tx].
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLiteStore keeps track pairs in the track_pairs table. Row order is the position column.
type SQLiteStore struct {
	db   *sql.DB
	path string
	opts options
}

// NewSQLiteStore creates a store on db. path is only used to describe the location.
func NewSQLiteStore(db *sql.DB, path string, opts ...Option) *SQLiteStore {
	return &SQLiteStore{db: db, path: path, opts: newOptions(opts)}
}

func (s *SQLiteStore) Location() string { return s.path }

// EnsureInitialized applies pending migrations. Existing rows are never touched.
func (s *SQLiteStore) EnsureInitialized(ctx context.Context) error {
	if err := shared.RunMigrations(ctx, s.db); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	return nil
}

// LoadAll returns every pair ordered by position. A database without the table yields an empty slice.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]models.TrackPair, error) {
	ok, err := s.tableExists(ctx)
	if err != nil || !ok {
		return []models.TrackPair{}, err
	}
	if err := s.checkColumns(ctx); err != nil {
		return nil, err
	}

	rows, err := loadRows(ctx, s.db)
	if err != nil {
		return nil, err
	}

	pairs := make([]models.TrackPair, len(rows))
	for i, r := range rows {
		pairs[i] = r.pair
	}
	return pairs, nil
}

// Append inserts pair after the last position inside a transaction that also performs the duplicate check.
func (s *SQLiteStore) Append(ctx context.Context, pair models.TrackPair) (models.TrackPair, error) {
	if err := s.EnsureInitialized(ctx); err != nil {
		return pair, err
	}
	if err := s.checkColumns(ctx); err != nil {
		return pair, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pair, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := loadRows(ctx, tx)
	if err != nil {
		return pair, err
	}
	existing := make([]models.TrackPair, len(rows))
	for i, r := range rows {
		existing[i] = r.pair
	}

	stored, err := s.opts.prepareAppend(existing, pair)
	if err != nil {
		return stored, err
	}

	if _, err := tx.ExecContext(ctx, insertPair, pairArgs(stored)...); err != nil {
		return stored, fmt.Errorf("failed to insert track pair: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return stored, fmt.Errorf("failed to commit track pair: %w", err)
	}
	return stored, nil
}

// ReplaceAt updates the row at the index-th position.
func (s *SQLiteStore) ReplaceAt(ctx context.Context, index int, pair models.TrackPair) error {
	if index < 0 {
		return indexError(index)
	}
	ok, err := s.tableExists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return indexError(index)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM track_pairs").Scan(&count); err != nil {
		return fmt.Errorf("failed to count track pairs: %w", err)
	}
	if index >= count {
		return indexError(index)
	}

	query := strings.Replace(selectPairs, "ORDER BY position ASC", "ORDER BY position ASC LIMIT 1 OFFSET ?", 1)
	stored, err := scanPair(tx.QueryRowContext(ctx, query, index))
	if err != nil {
		return fmt.Errorf("failed to read track pair %d: %w", index, err)
	}
	if err := checkReplace(index, count, stored.pair, pair); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE track_pairs
		SET source = ?, brazilian_has_spotify = ?, original_has_spotify = ?, in_playlist = ?
		WHERE position = ?
	`, pair.Source, availabilityArg(pair.BrazilianHasSpotify), availabilityArg(pair.OriginalHasSpotify), pair.InPlaylist, stored.position)
	if err != nil {
		return fmt.Errorf("failed to update track pair %d: %w", index, err)
	}
	return tx.Commit()
}

// WriteAll deletes every row and inserts pairs in order, in one transaction.
func (s *SQLiteStore) WriteAll(ctx context.Context, pairs []models.TrackPair) error {
	if err := s.EnsureInitialized(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM track_pairs"); err != nil {
		return fmt.Errorf("failed to clear track pairs: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertPair)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range pairs {
		if _, err := stmt.ExecContext(ctx, pairArgs(p)...); err != nil {
			return fmt.Errorf("failed to insert track pair %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) tableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'track_pairs')",
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to inspect store: %w", err)
	}
	return exists, nil
}

// checkColumns is the header check: the table must hold position followed by [Header].
func (s *SQLiteStore) checkColumns(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM track_pairs LIMIT 0")
	if err != nil {
		return fmt.Errorf("failed to inspect store: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to inspect store: %w", err)
	}
	if len(columns) == 0 || columns[0] != "position" {
		return fmt.Errorf("%w: track_pairs has no position column", shared.ErrInvalidFormat)
	}
	return checkHeader(columns[1:])
}

type positionedPair struct {
	position int64
	pair     models.TrackPair
}

type scanner interface {
	Scan(dest ...any) error
}

func loadRows(ctx context.Context, q queryer) ([]positionedPair, error) {
	rows, err := q.QueryContext(ctx, selectPairs)
	if err != nil {
		return nil, fmt.Errorf("failed to query track pairs: %w", err)
	}
	defer rows.Close()

	var pairs []positionedPair
	for rows.Next() {
		p, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate track pairs: %w", err)
	}
	return pairs, nil
}

func scanPair(row scanner) (positionedPair, error) {
	var (
		p               positionedPair
		brazilian, orig sql.NullBool
	)
	err := row.Scan(
		&p.position,
		&p.pair.BrazilianArtist,
		&p.pair.BrazilianTrack,
		&p.pair.OriginalArtist,
		&p.pair.OriginalTrack,
		&p.pair.AddedAt,
		&p.pair.Source,
		&brazilian,
		&orig,
		&p.pair.InPlaylist,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan track pair: %w", err)
	}
	p.pair.BrazilianHasSpotify = availabilityFromNull(brazilian)
	p.pair.OriginalHasSpotify = availabilityFromNull(orig)
	return p, nil
}

func pairArgs(p models.TrackPair) []any {
	return []any{
		p.BrazilianArtist,
		p.BrazilianTrack,
		p.OriginalArtist,
		p.OriginalTrack,
		p.AddedAt,
		p.Source,
		availabilityArg(p.BrazilianHasSpotify),
		availabilityArg(p.OriginalHasSpotify),
		p.InPlaylist,
	}
}

func availabilityArg(a models.Availability) sql.NullBool {
	if a == models.Unknown {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: a == models.Available, Valid: true}
}

func availabilityFromNull(b sql.NullBool) models.Availability {
	if !b.Valid {
		return models.Unknown
	}
	return models.FromBool(b.Bool)
}
