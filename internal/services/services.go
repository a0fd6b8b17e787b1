// package services defines the Catalog boundary used by reconciliation
//
// Spotify (via github.com/zmb3/spotify/v2)
package services

import (
	"context"

	"github.com/desertthunder/forro/internal/models"
)

// Catalog is the external music catalog consulted for track availability and playlist membership.
type Catalog interface {
	// SearchTrack returns the best match for title and artist, or nil with a nil error when nothing matches.
	// Transport and auth failures are returned as errors wrapping [shared.ErrLookupTransport], never as a miss.
	SearchTrack(ctx context.Context, title, artist string) (*models.CatalogTrack, error)

	// AddToPlaylist adds uris to the playlist in a single request. An empty list is a no-op.
	AddToPlaylist(ctx context.Context, playlistID string, uris []string) error

	// Name returns the name of the catalog (e.g., "Spotify")
	Name() string
}
