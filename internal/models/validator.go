package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/desertthunder/forro/internal/shared"
)

// DefaultSimilarity is the Jaro-Winkler score at which two pairs are reported as near-duplicates.
const DefaultSimilarity = 0.92

// ValidationError carries every validation message for a rejected pair.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", shared.ErrValidation, strings.Join(e.Messages, "; "))
}

func (e *ValidationError) Unwrap() error { return shared.ErrValidation }

// Validate checks each identity field after trimming and returns one message per empty field,
// in the order Brazilian artist, Brazilian track, original artist, original track.
// An empty result means the pair is valid.
func Validate(p TrackPair) []string {
	var messages []string
	checks := []struct {
		value string
		label string
	}{
		{p.BrazilianArtist, "Brazilian artist"},
		{p.BrazilianTrack, "Brazilian track"},
		{p.OriginalArtist, "Original artist"},
		{p.OriginalTrack, "Original track"},
	}
	for _, c := range checks {
		if strings.TrimSpace(c.value) == "" {
			messages = append(messages, c.label+" cannot be empty")
		}
	}
	return messages
}

// Validate returns a [*ValidationError] when any identity field is empty.
func (p TrackPair) Validate() error {
	if messages := Validate(p); len(messages) > 0 {
		return &ValidationError{Messages: messages}
	}
	return nil
}

// FindDuplicate returns the first pair in existing whose identity fields match candidate,
// ignoring letter case.
func FindDuplicate(existing []TrackPair, candidate TrackPair) (*TrackPair, bool) {
	for i := range existing {
		if existing[i].SameIdentity(candidate) {
			return &existing[i], true
		}
	}
	return nil, false
}

// Deduper finds an existing pair matching a candidate. Stores depend on this interface so an
// indexed implementation can replace the linear scan.
type Deduper interface {
	Find(existing []TrackPair, candidate TrackPair) (*TrackPair, bool)
}

// LinearDeduper scans every existing pair with [FindDuplicate].
type LinearDeduper struct{}

func (LinearDeduper) Find(existing []TrackPair, candidate TrackPair) (*TrackPair, bool) {
	return FindDuplicate(existing, candidate)
}

// DuplicateError builds the error returned when candidate matches dup.
func DuplicateError(dup TrackPair) error {
	return fmt.Errorf("%w: %s - %s", shared.ErrDuplicatePair, dup.BrazilianArtist, dup.BrazilianTrack)
}

// SimilarPair is a near-duplicate found by [SimilarPairs].
type SimilarPair struct {
	Pair  TrackPair
	Score float64
}

// SimilarPairs returns existing pairs whose normalized identity scores at least threshold
// against candidate, best first. Exact duplicates are excluded.
func SimilarPairs(existing []TrackPair, candidate TrackPair, threshold float64) []SimilarPair {
	if threshold <= 0 {
		threshold = DefaultSimilarity
	}

	key := candidate.Key()
	metric := metrics.NewJaroWinkler()

	var similar []SimilarPair
	for _, p := range existing {
		if p.SameIdentity(candidate) {
			continue
		}
		if score := strutil.Similarity(key, p.Key(), metric); score >= threshold {
			similar = append(similar, SimilarPair{Pair: p, Score: score})
		}
	}

	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].Score > similar[j].Score
	})
	return similar
}
