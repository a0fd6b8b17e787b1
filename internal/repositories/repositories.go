package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/forro/internal/models"
	"github.com/desertthunder/forro/internal/shared"
)

// Header is the canonical column order of a track pair store.
var Header = []string{
	"brazilian_artist",
	"brazilian_track",
	"original_artist",
	"original_track",
	"added_at",
	"source",
	"brazilian_has_spotify",
	"original_has_spotify",
	"in_playlist",
}

// PairStore is the record store contract shared by every backend. The location is bound at construction.
type PairStore interface {
	// EnsureInitialized creates the store with the canonical header. It never overwrites an existing, non-empty store.
	EnsureInitialized(ctx context.Context) error
	// LoadAll returns every pair in stored order. A missing or header-only store yields an empty slice.
	LoadAll(ctx context.Context) ([]models.TrackPair, error)
	// Append stamps AddedAt, writes pair as the last row and returns the stored form.
	Append(ctx context.Context, pair models.TrackPair) (models.TrackPair, error)
	// ReplaceAt overwrites the pair at the 0-based index, leaving every other row untouched.
	ReplaceAt(ctx context.Context, index int, pair models.TrackPair) error
	// WriteAll replaces the full contents of the store with pairs, in order.
	WriteAll(ctx context.Context, pairs []models.TrackPair) error
	// Location describes where the store lives.
	Location() string
}

// Option configures a store.
type Option func(*options)

type options struct {
	deduper models.Deduper
	now     func() time.Time
}

func newOptions(opts []Option) options {
	o := options{deduper: models.LinearDeduper{}, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithDeduper replaces the linear duplicate scan used by Append.
func WithDeduper(d models.Deduper) Option {
	return func(o *options) {
		if d != nil {
			o.deduper = d
		}
	}
}

// WithClock sets the time source used to stamp AddedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// prepareAppend trims and validates pair, rejects duplicates of existing and stamps AddedAt.
func (o options) prepareAppend(existing []models.TrackPair, pair models.TrackPair) (models.TrackPair, error) {
	pair = pair.Trimmed()
	if err := pair.Validate(); err != nil {
		return pair, err
	}
	if dup, ok := o.deduper.Find(existing, pair); ok {
		return pair, models.DuplicateError(*dup)
	}
	pair.Stamp(o.now())
	return pair, nil
}

// checkReplace enforces the index range and the immutability of identity fields and AddedAt.
func checkReplace(index, count int, stored, pair models.TrackPair) error {
	if index < 0 || index >= count {
		return indexError(index)
	}
	if stored.BrazilianArtist != pair.BrazilianArtist || stored.BrazilianTrack != pair.BrazilianTrack ||
		stored.OriginalArtist != pair.OriginalArtist || stored.OriginalTrack != pair.OriginalTrack {
		return fmt.Errorf("%w: identity of track pair %d cannot change", shared.ErrInvalidArgument, index)
	}
	if stored.AddedAt != pair.AddedAt {
		return fmt.Errorf("%w: added_at of track pair %d cannot change", shared.ErrInvalidArgument, index)
	}
	return nil
}

func indexError(index int) error {
	return fmt.Errorf("%w: track pair index %d out of range", shared.ErrIndexOutOfRange, index)
}

// encodeRecord serializes pair in [Header] order.
func encodeRecord(p models.TrackPair) []string {
	return []string{
		p.BrazilianArtist,
		p.BrazilianTrack,
		p.OriginalArtist,
		p.OriginalTrack,
		p.AddedAt,
		p.Source,
		p.BrazilianHasSpotify.Token(),
		p.OriginalHasSpotify.Token(),
		models.BoolToken(p.InPlaylist),
	}
}

// decodeRecord parses a row in [Header] order. row is 1-based and only used in errors.
func decodeRecord(fields []string, row int) (models.TrackPair, error) {
	if len(fields) != len(Header) {
		return models.TrackPair{}, fmt.Errorf("%w: row %d has %d fields, want %d", shared.ErrInvalidFormat, row, len(fields), len(Header))
	}

	p := models.TrackPair{
		BrazilianArtist: fields[0],
		BrazilianTrack:  fields[1],
		OriginalArtist:  fields[2],
		OriginalTrack:   fields[3],
		AddedAt:         fields[4],
		Source:          fields[5],
	}

	var err error
	if p.BrazilianHasSpotify, err = models.ParseAvailability(fields[6]); err != nil {
		return p, fmt.Errorf("row %d: %w", row, err)
	}
	if p.OriginalHasSpotify, err = models.ParseAvailability(fields[7]); err != nil {
		return p, fmt.Errorf("row %d: %w", row, err)
	}
	if p.InPlaylist, err = models.ParseBoolToken(fields[8]); err != nil {
		return p, fmt.Errorf("row %d: %w", row, err)
	}
	return p, nil
}

// checkHeader reports [shared.ErrInvalidFormat] unless got is exactly [Header].
func checkHeader(got []string) error {
	if len(got) != len(Header) {
		return fmt.Errorf("%w: expected columns %v, got %v", shared.ErrInvalidFormat, Header, got)
	}
	for i := range Header {
		if got[i] != Header[i] {
			return fmt.Errorf("%w: expected columns %v, got %v", shared.ErrInvalidFormat, Header, got)
		}
	}
	return nil
}
