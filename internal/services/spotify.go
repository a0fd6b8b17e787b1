// Spotify Web API implementation of [Catalog]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/desertthunder/forro/internal/models"
	"github.com/desertthunder/forro/internal/shared"
)

const (
	DefaultRedirectURI = "http://127.0.0.1:3000/callback"
	trackURIPrefix     = "spotify:track:"
)

// SpotifyService implements [Catalog] for the Spotify Web API.
// Uses [oauth2] for authentication; expired tokens are refreshed automatically and reported to the token callback.
type SpotifyService struct {
	config     *oauth2.Config
	httpClient *http.Client
	baseURL    string
	onToken    func(*oauth2.Token)
	client     *spotify.Client
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points API requests at url, which must end in a slash.
func WithBaseURL(url string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = url }
}

// WithHTTPClient sets the client used for API and token requests.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.httpClient = c }
}

// WithAuthEndpoint overrides the Spotify accounts endpoints.
func WithAuthEndpoint(e oauth2.Endpoint) SpotifyOption {
	return func(s *SpotifyService) { s.config.Endpoint = e }
}

// WithTokenCallback registers fn to receive every newly issued token, including refreshes.
func WithTokenCallback(fn func(*oauth2.Token)) SpotifyOption {
	return func(s *SpotifyService) { s.onToken = fn }
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes: []string{
				spotifyauth.ScopePlaylistModifyPublic,
				spotifyauth.ScopePlaylistModifyPrivate,
			},
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and authenticates the service with it.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	if err := s.Authenticate(ctx, token); err != nil {
		return nil, err
	}
	if s.onToken != nil {
		s.onToken(token)
	}
	return token, nil
}

// Authenticate builds the API client from a stored token.
func (s *SpotifyService) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: no stored token, run auth first", shared.ErrNotAuthenticated)
	}

	octx := s.oauthContext(ctx)
	source := &notifyingSource{
		base:      s.config.TokenSource(octx, token),
		last:      token.AccessToken,
		onRefresh: s.onToken,
	}
	httpClient := oauth2.NewClient(octx, source)

	var opts []spotify.ClientOption
	if s.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.baseURL))
	}
	s.client = spotify.New(httpClient, opts...)
	return nil
}

// Authenticated reports whether [SpotifyService.Authenticate] has succeeded.
func (s *SpotifyService) Authenticated() bool {
	return s.client != nil
}

// SearchTrack runs a "track:<title> artist:<artist>" search and maps the first result.
func (s *SpotifyService) SearchTrack(ctx context.Context, title, artist string) (*models.CatalogTrack, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrLookupTransport, shared.ErrNotAuthenticated)
	}

	query := fmt.Sprintf("track:%s artist:%s", title, artist)
	result, err := s.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return nil, wrapSpotifyError("search", err)
	}
	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return nil, nil
	}

	track := result.Tracks.Tracks[0]
	found := &models.CatalogTrack{
		ID:   track.ID.String(),
		Name: track.Name,
		URI:  string(track.URI),
		URL:  track.ExternalURLs["spotify"],
	}
	if len(track.Artists) > 0 {
		found.Artist = track.Artists[0].Name
	}
	if found.URI == "" && found.ID != "" {
		found.URI = trackURIPrefix + found.ID
	}
	return found, nil
}

// AddToPlaylist adds every uri to the playlist in one request.
func (s *SpotifyService) AddToPlaylist(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if s.client == nil {
		return fmt.Errorf("%w: %w", shared.ErrLookupTransport, shared.ErrNotAuthenticated)
	}
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id is empty", shared.ErrMissingArgument)
	}

	ids := make([]spotify.ID, 0, len(uris))
	for _, uri := range uris {
		ids = append(ids, spotify.ID(strings.TrimPrefix(uri, trackURIPrefix)))
	}

	if _, err := s.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
		return wrapSpotifyError("add to playlist", err)
	}
	return nil
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// wrapSpotifyError marks err as a transport failure, adding the auth or availability sentinel when the status says so.
func wrapSpotifyError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", shared.ErrLookupTransport, op, err)
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return fmt.Errorf("%w: %s: %w: %s", shared.ErrLookupTransport, op, shared.ErrTokenExpired, apiErr.Message)
		case apiErr.Status >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %s: %w: %s", shared.ErrLookupTransport, op, shared.ErrServiceUnavailable, apiErr.Message)
		default:
			return fmt.Errorf("%w: %s: status %d: %s", shared.ErrLookupTransport, op, apiErr.Status, apiErr.Message)
		}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s: %w: %v", shared.ErrLookupTransport, op, shared.ErrTokenExpired, err)
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrLookupTransport, op, err)
}

// notifyingSource reports each token whose access token differs from the previous one.
type notifyingSource struct {
	base      oauth2.TokenSource
	onRefresh func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (n *notifyingSource) Token() (*oauth2.Token, error) {
	token, err := n.base.Token()
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	changed := token.AccessToken != n.last
	n.last = token.AccessToken
	n.mu.Unlock()

	if changed && n.onRefresh != nil {
		n.onRefresh(token)
	}
	return token, nil
}
