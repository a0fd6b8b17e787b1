package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/forro/internal/shared"
)

// Availability records whether one side of a pair exists in the catalog.
type Availability int

const (
	Unknown     Availability = iota // not looked up yet
	Available                       // catalog returned a match
	Unavailable                     // no match; never looked up again
)

// Serialized tokens for [Availability] and booleans.
const (
	TokenTrue  = "True"
	TokenFalse = "False"
)

// Status groups pairs for listing.
type Status string

const (
	StatusPending     Status = "pending"
	StatusAdded       Status = "added"
	StatusUnavailable Status = "unavailable"
)

// String returns a human readable name.
func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Token returns the stored form: empty for [Unknown], "True" or "False" otherwise.
func (a Availability) Token() string {
	switch a {
	case Available:
		return TokenTrue
	case Unavailable:
		return TokenFalse
	default:
		return ""
	}
}

// ParseAvailability decodes a stored token. Empty means [Unknown]; otherwise the token must be
// "true" or "false" in any letter case.
func ParseAvailability(token string) (Availability, error) {
	switch {
	case token == "":
		return Unknown, nil
	case strings.EqualFold(token, TokenTrue):
		return Available, nil
	case strings.EqualFold(token, TokenFalse):
		return Unavailable, nil
	}
	return Unknown, fmt.Errorf("%w: bad availability value %q", shared.ErrInvalidFormat, token)
}

// FromBool maps a known boolean onto [Available] or [Unavailable].
func FromBool(found bool) Availability {
	if found {
		return Available
	}
	return Unavailable
}

// MarshalJSON encodes [Unknown] as null and the other states as booleans.
func (a Availability) MarshalJSON() ([]byte, error) {
	switch a {
	case Available:
		return []byte("true"), nil
	case Unavailable:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null or a boolean.
func (a *Availability) UnmarshalJSON(data []byte) error {
	var v *bool
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: availability must be a boolean or null", shared.ErrInvalidFormat)
	}
	if v == nil {
		*a = Unknown
	} else {
		*a = FromBool(*v)
	}
	return nil
}

// BoolToken returns the stored form of a plain boolean.
func BoolToken(b bool) string {
	if b {
		return TokenTrue
	}
	return TokenFalse
}

// ParseBoolToken decodes the in-playlist column. Empty reads as false.
func ParseBoolToken(token string) (bool, error) {
	switch {
	case token == "", strings.EqualFold(token, TokenFalse):
		return false, nil
	case strings.EqualFold(token, TokenTrue):
		return true, nil
	}
	return false, fmt.Errorf("%w: bad boolean value %q", shared.ErrInvalidFormat, token)
}

// TrackPair is one stored row: a Brazilian cover, the original, and its reconciliation state.
type TrackPair struct {
	BrazilianArtist     string       `json:"brazilian_artist"`
	BrazilianTrack      string       `json:"brazilian_track"`
	OriginalArtist      string       `json:"original_artist"`
	OriginalTrack       string       `json:"original_track"`
	AddedAt             string       `json:"added_at"`
	Source              string       `json:"source"`
	BrazilianHasSpotify Availability `json:"brazilian_has_spotify"`
	OriginalHasSpotify  Availability `json:"original_has_spotify"`
	InPlaylist          bool         `json:"in_playlist"`
}

// NewTrackPair builds an unreconciled pair with trimmed identity fields.
func NewTrackPair(brazilianArtist, brazilianTrack, originalArtist, originalTrack, source string) TrackPair {
	return TrackPair{
		BrazilianArtist: strings.TrimSpace(brazilianArtist),
		BrazilianTrack:  strings.TrimSpace(brazilianTrack),
		OriginalArtist:  strings.TrimSpace(originalArtist),
		OriginalTrack:   strings.TrimSpace(originalTrack),
		Source:          strings.TrimSpace(source),
	}
}

// Trimmed returns a copy with whitespace removed around the identity fields.
func (p TrackPair) Trimmed() TrackPair {
	p.BrazilianArtist = strings.TrimSpace(p.BrazilianArtist)
	p.BrazilianTrack = strings.TrimSpace(p.BrazilianTrack)
	p.OriginalArtist = strings.TrimSpace(p.OriginalArtist)
	p.OriginalTrack = strings.TrimSpace(p.OriginalTrack)
	return p
}

// Stamp sets AddedAt to t in UTC, RFC 3339.
func (p *TrackPair) Stamp(t time.Time) {
	p.AddedAt = t.UTC().Format(time.RFC3339)
}

// SameIdentity reports whether both pairs have the same identity fields, ignoring letter case.
func (p TrackPair) SameIdentity(other TrackPair) bool {
	return equalField(p.BrazilianArtist, other.BrazilianArtist) &&
		equalField(p.BrazilianTrack, other.BrazilianTrack) &&
		equalField(p.OriginalArtist, other.OriginalArtist) &&
		equalField(p.OriginalTrack, other.OriginalTrack)
}

func equalField(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Key returns a normalized identity string used for similarity scoring.
func (p TrackPair) Key() string {
	return shared.NormalizeTrackKey(p.BrazilianTrack, p.BrazilianArtist) + "|" +
		shared.NormalizeTrackKey(p.OriginalTrack, p.OriginalArtist)
}

// Resolved reports whether reconciliation has nothing left to do for this pair.
func (p TrackPair) Resolved() bool {
	return p.InPlaylist || p.BrazilianHasSpotify == Unavailable || p.OriginalHasSpotify == Unavailable
}

// Status classifies the pair for listing.
func (p TrackPair) Status() Status {
	switch {
	case p.InPlaylist:
		return StatusAdded
	case p.BrazilianHasSpotify == Unavailable || p.OriginalHasSpotify == Unavailable:
		return StatusUnavailable
	default:
		return StatusPending
	}
}

// String formats the pair as "BA - BT -> OA - OT".
func (p TrackPair) String() string {
	return fmt.Sprintf("%s - %s -> %s - %s", p.BrazilianArtist, p.BrazilianTrack, p.OriginalArtist, p.OriginalTrack)
}

// CatalogTrack is the best catalog match for a search.
type CatalogTrack struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Artist string `json:"artist"`
	URI    string `json:"uri"`
	URL    string `json:"url"`
}
