// Package services defines the [Catalog] boundary and implements it for Spotify.
//
// # Catalog Interface
//
// Reconciliation depends only on [Catalog]: a single-result track search and a batched
// add-to-playlist call. Tests substitute a hand-written double; the CLI constructs a
// [SpotifyService] once and injects it.
//
// # Spotify Implementation
//
// [SpotifyService] wraps github.com/zmb3/spotify/v2 over an [oauth2] client. The
// authorization-code flow requests the playlist-modify scopes. Expired tokens are refreshed
// by the oauth2 transport and every new token is passed to the callback registered with
// [WithTokenCallback], which the CLI uses to persist it.
//
// # Error Handling
//
// A search that matches nothing returns a nil track and a nil error. Every other failure
// wraps [shared.ErrLookupTransport], plus:
//   - [shared.ErrTokenExpired] : HTTP 401 or a failed token refresh
//   - [shared.ErrServiceUnavailable] : HTTP 5xx
//   - [shared.ErrNotAuthenticated] : no token was loaded
package services
