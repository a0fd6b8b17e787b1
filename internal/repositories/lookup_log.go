package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LookupEntry is one catalog call made during a reconciliation run.
type LookupEntry struct {
	RunID      string
	Title      string
	Artist     string
	Found      bool
	CatalogURI string
	Error      string
	CreatedAt  time.Time
}

// LookupLog implements tasks.LookupRecorder on the lookup_log table.
//
// Entries are only ever inserted; the log is a diagnostic trail and never feeds back into reconciliation.
type LookupLog struct {
	db *sql.DB
}

// NewLookupLog creates a LookupLog on db. The table comes from the embedded migrations.
func NewLookupLog(db *sql.DB) *LookupLog {
	return &LookupLog{db: db}
}

// RecordLookup inserts one entry. A failed lookup is stored with found = false and its error text.
func (l *LookupLog) RecordLookup(ctx context.Context, runID, title, artist, uri string, found bool, lookupErr error) error {
	var errText string
	if lookupErr != nil {
		errText = lookupErr.Error()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO lookup_log (run_id, title, artist, found, catalog_uri, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, title, artist, found, uri, errText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record lookup: %w", err)
	}
	return nil
}

// List returns the entries of a run in insertion order.
func (l *LookupLog) List(ctx context.Context, runID string) ([]LookupEntry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, title, artist, found, catalog_uri, error, created_at
		FROM lookup_log
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lookup log: %w", err)
	}
	defer rows.Close()

	var entries []LookupEntry
	for rows.Next() {
		var e LookupEntry
		if err := rows.Scan(&e.RunID, &e.Title, &e.Artist, &e.Found, &e.CatalogURI, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lookup entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lookup log: %w", err)
	}
	return entries, nil
}
