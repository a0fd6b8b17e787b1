package repositories

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/forro/internal/models"
	"github.com/desertthunder/forro/internal/shared"
)

var fixedNow = time.Date(2024, 6, 24, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// setupTestDB creates an in-memory SQLite database limited to one connection
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)
	t.Cleanup(func() { db.Close() })
	return db
}

type storeFactory func(t *testing.T) PairStore

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"CSVStore": func(t *testing.T) PairStore {
			return NewCSVStore(filepath.Join(t.TempDir(), "data", "track_pairs.csv"), WithClock(fixedClock))
		},
		"SQLiteStore": func(t *testing.T) PairStore {
			return NewSQLiteStore(setupTestDB(t), ":memory:", WithClock(fixedClock))
		},
	}
}

func samplePairs() []models.TrackPair {
	return []models.TrackPair{
		models.NewTrackPair("Falamansa", "Xote dos Milagres", "Dominguinhos", "Xote dos Milagres", "manual"),
		models.NewTrackPair("Trio Nordestino", "Chililique", "Luiz Gonzaga", "Chililique", ""),
		models.NewTrackPair("Mastruz com Leite", "Meu Vaqueiro", "Elba Ramalho", "Banho de Cheiro", "import"),
	}
}

// TestPairStoreContract runs the same behavior checks against every backend.
func TestPairStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Run("LoadAll before initialization is empty", func(t *testing.T) {
				store := newStore(t)

				pairs, err := store.LoadAll(ctx)
				if err != nil {
					t.Fatalf("LoadAll failed: %v", err)
				}
				if len(pairs) != 0 {
					t.Errorf("expected no pairs, got %d", len(pairs))
				}
			})

			t.Run("EnsureInitialized yields empty store", func(t *testing.T) {
				store := newStore(t)

				if err := store.EnsureInitialized(ctx); err != nil {
					t.Fatalf("EnsureInitialized failed: %v", err)
				}
				pairs, err := store.LoadAll(ctx)
				if err != nil {
					t.Fatalf("LoadAll failed: %v", err)
				}
				if len(pairs) != 0 {
					t.Errorf("expected no pairs, got %d", len(pairs))
				}
			})

			t.Run("EnsureInitialized keeps existing rows", func(t *testing.T) {
				store := newStore(t)

				if _, err := store.Append(ctx, samplePairs()[0]); err != nil {
					t.Fatalf("Append failed: %v", err)
				}
				if err := store.EnsureInitialized(ctx); err != nil {
					t.Fatalf("EnsureInitialized failed: %v", err)
				}

				pairs, _ := store.LoadAll(ctx)
				if len(pairs) != 1 {
					t.Errorf("expected existing row to survive, got %d rows", len(pairs))
				}
			})

			t.Run("Append materializes the stored row", func(t *testing.T) {
				store := newStore(t)

				stored, err := store.Append(ctx, models.NewTrackPair(" Falamansa ", "Xote dos Milagres", "Dominguinhos", "Xote dos Milagres", ""))
				if err != nil {
					t.Fatalf("Append failed: %v", err)
				}

				if stored.AddedAt != "2024-06-24T12:00:00Z" {
					t.Errorf("expected AddedAt to be stamped, got %q", stored.AddedAt)
				}
				if stored.BrazilianArtist != "Falamansa" {
					t.Errorf("expected trimmed artist, got %q", stored.BrazilianArtist)
				}

				pairs, err := store.LoadAll(ctx)
				if err != nil {
					t.Fatalf("LoadAll failed: %v", err)
				}
				if len(pairs) != 1 || pairs[0] != stored {
					t.Errorf("expected loaded pair %+v, got %+v", stored, pairs)
				}
			})

			t.Run("Append then duplicate", func(t *testing.T) {
				store := newStore(t)
				pair := samplePairs()[0]

				if _, err := store.Append(ctx, pair); err != nil {
					t.Fatalf("first Append failed: %v", err)
				}

				_, err := store.Append(ctx, pair)
				if !errors.Is(err, shared.ErrDuplicatePair) {
					t.Fatalf("expected ErrDuplicatePair, got %v", err)
				}
				if !strings.Contains(err.Error(), "already exists") {
					t.Errorf("expected message to contain 'already exists', got %q", err.Error())
				}

				upper := models.NewTrackPair("FALAMANSA", "XOTE DOS MILAGRES", "DOMINGUINHOS", "XOTE DOS MILAGRES", "")
				if _, err := store.Append(ctx, upper); !errors.Is(err, shared.ErrDuplicatePair) {
					t.Errorf("expected case-insensitive duplicate, got %v", err)
				}

				pairs, _ := store.LoadAll(ctx)
				if len(pairs) != 1 {
					t.Errorf("duplicates must not be persisted, got %d rows", len(pairs))
				}
			})

			t.Run("Append rejects invalid pair", func(t *testing.T) {
				store := newStore(t)

				_, err := store.Append(ctx, models.NewTrackPair("", " ", "Dominguinhos", "Xote", ""))
				if !errors.Is(err, shared.ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
			})

			t.Run("WriteAll then LoadAll round trip", func(t *testing.T) {
				store := newStore(t)
				pairs := samplePairs()
				pairs[0].AddedAt = "2024-01-01T00:00:00Z"
				pairs[0].BrazilianHasSpotify = models.Available
				pairs[0].OriginalHasSpotify = models.Available
				pairs[0].InPlaylist = true
				pairs[1].BrazilianHasSpotify = models.Unavailable
				pairs[2].Source = "a, \"quoted\" source"

				if err := store.WriteAll(ctx, pairs); err != nil {
					t.Fatalf("WriteAll failed: %v", err)
				}

				loaded, err := store.LoadAll(ctx)
				if err != nil {
					t.Fatalf("LoadAll failed: %v", err)
				}
				if len(loaded) != len(pairs) {
					t.Fatalf("expected %d pairs, got %d", len(pairs), len(loaded))
				}
				for i := range pairs {
					if loaded[i] != pairs[i] {
						t.Errorf("pair %d: expected %+v, got %+v", i, pairs[i], loaded[i])
					}
				}
			})

			t.Run("WriteAll replaces previous contents", func(t *testing.T) {
				store := newStore(t)

				if err := store.WriteAll(ctx, samplePairs()); err != nil {
					t.Fatalf("WriteAll failed: %v", err)
				}
				if err := store.WriteAll(ctx, samplePairs()[2:]); err != nil {
					t.Fatalf("second WriteAll failed: %v", err)
				}

				loaded, _ := store.LoadAll(ctx)
				if len(loaded) != 1 || loaded[0].BrazilianArtist != "Mastruz com Leite" {
					t.Errorf("unexpected contents %+v", loaded)
				}
			})

			t.Run("ReplaceAt updates one row", func(t *testing.T) {
				store := newStore(t)
				if err := store.WriteAll(ctx, samplePairs()); err != nil {
					t.Fatalf("WriteAll failed: %v", err)
				}

				loaded, _ := store.LoadAll(ctx)
				updated := loaded[1]
				updated.BrazilianHasSpotify = models.Available
				updated.OriginalHasSpotify = models.Unavailable

				if err := store.ReplaceAt(ctx, 1, updated); err != nil {
					t.Fatalf("ReplaceAt failed: %v", err)
				}

				after, _ := store.LoadAll(ctx)
				if after[1] != updated {
					t.Errorf("expected %+v, got %+v", updated, after[1])
				}
				if after[0] != loaded[0] || after[2] != loaded[2] {
					t.Error("other rows should be unchanged")
				}
			})

			t.Run("ReplaceAt out of range", func(t *testing.T) {
				store := newStore(t)
				if err := store.WriteAll(ctx, samplePairs()); err != nil {
					t.Fatalf("WriteAll failed: %v", err)
				}

				for _, index := range []int{-1, 3, 100} {
					err := store.ReplaceAt(ctx, index, samplePairs()[0])
					if !errors.Is(err, shared.ErrIndexOutOfRange) {
						t.Errorf("index %d: expected ErrIndexOutOfRange, got %v", index, err)
					}
				}
			})

			t.Run("ReplaceAt rejects identity change", func(t *testing.T) {
				store := newStore(t)
				if err := store.WriteAll(ctx, samplePairs()); err != nil {
					t.Fatalf("WriteAll failed: %v", err)
				}

				changed := samplePairs()[0]
				changed.OriginalTrack = "Something Else"
				if err := store.ReplaceAt(ctx, 0, changed); !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
			})

			t.Run("custom deduper", func(t *testing.T) {
				var store PairStore
				switch s := newStore(t).(type) {
				case *CSVStore:
					store = NewCSVStore(s.Location(), WithDeduper(rejectAll{}))
				case *SQLiteStore:
					store = NewSQLiteStore(s.db, s.path, WithDeduper(rejectAll{}))
				}

				if err := store.WriteAll(ctx, samplePairs()[:1]); err != nil {
					t.Fatalf("WriteAll failed: %v", err)
				}
				_, err := store.Append(ctx, samplePairs()[1])
				if !errors.Is(err, shared.ErrDuplicatePair) {
					t.Errorf("expected custom deduper to be used, got %v", err)
				}
			})
		})
	}
}

// rejectAll treats the first existing pair as a duplicate of anything.
type rejectAll struct{}

func (rejectAll) Find(existing []models.TrackPair, _ models.TrackPair) (*models.TrackPair, bool) {
	if len(existing) == 0 {
		return nil, false
	}
	return &existing[0], true
}

func TestCheckHeader(t *testing.T) {
	if err := checkHeader(Header); err != nil {
		t.Errorf("canonical header rejected: %v", err)
	}

	tc := [][]string{
		{"wrong", "headers"},
		{},
		append([]string{"original_artist"}, Header[1:]...),
		append(append([]string{}, Header...), "extra"),
	}
	for _, header := range tc {
		if err := checkHeader(header); !errors.Is(err, shared.ErrInvalidFormat) {
			t.Errorf("checkHeader(%v) expected ErrInvalidFormat, got %v", header, err)
		}
	}
}
