// Spotify API implementation of [OAuthService] and [Fetcher]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/encore/internal/shared"
	"github.com/desertthunder/encore/internal/tokens"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultScope     = "user-top-read"
	defaultLimit     = 5
	defaultTimeRange = "short_term"
	defaultTimeout   = 10 * time.Second
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	ExternalURLs externalURLs    `json:"external_urls"`
}

// SpotifyPaginatedTracks represents a paginated response of tracks.
type SpotifyPaginatedTracks struct {
	Items []SpotifyTrack `json:"items"`
	Total int            `json:"total"`
	Limit int            `json:"limit"`
}

// SpotifyService implements [OAuthService] and [Fetcher] against the Spotify
// Web API under a fixed application identity. The client secret never leaves
// the server.
type SpotifyService struct {
	config     *oauth2.Config
	httpClient *http.Client
	baseURL    string
	limit      int
	timeRange  string
}

// NewSpotifyService creates a new Spotify service from the application's
// OAuth2 identity and track fetch bounds.
func NewSpotifyService(creds shared.SpotifyConfig, tracks shared.TracksConfig) (*SpotifyService, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	scope := creds.Scope
	if scope == "" {
		scope = defaultScope
	}

	limit := tracks.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > 50 {
		limit = 50
	}

	timeRange := tracks.TimeRange
	if timeRange == "" {
		timeRange = defaultTimeRange
	}

	config := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Scopes:       strings.Fields(scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    spotifyBaseURL,
		limit:      limit,
		timeRange:  timeRange,
	}, nil
}

// AuthURL returns the authorization URL for user consent.
//
// show_dialog forces the consent screen so switching accounts stays possible.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// ExchangeCode exchanges an authorization code for a credential bundle in a
// single round trip against the token endpoint.
func (s *SpotifyService) ExchangeCode(ctx context.Context, code string) (tokens.Bundle, error) {
	if code == "" {
		return tokens.Bundle{}, fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	tok, err := s.config.Exchange(s.clientContext(ctx), code)
	if err != nil {
		return tokens.Bundle{}, classifyExchangeErr("code exchange", err)
	}

	return bundleFromToken(tok, "")
}

// Refresh exchanges a refresh token for a renewed bundle. Spotify may omit a
// new refresh token in the response, in which case the prior one is retained.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (tokens.Bundle, error) {
	if refreshToken == "" {
		return tokens.Bundle{}, shared.ErrNoRefreshToken
	}

	src := s.config.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return tokens.Bundle{}, classifyExchangeErr("token refresh", err)
	}

	return bundleFromToken(tok, refreshToken)
}

// TopTracks retrieves the user's top tracks over the configured recency
// window. Every call is a fresh remote fetch.
func (s *SpotifyService) TopTracks(ctx context.Context, accessToken string) ([]Song, error) {
	endpoint := fmt.Sprintf("%s/me/top/tracks?limit=%d&time_range=%s", s.baseURL, s.limit, url.QueryEscape(s.timeRange))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: spotify API status %d", shared.ErrRemoteRejected, resp.StatusCode)
	}

	var page SpotifyPaginatedTracks
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", shared.ErrNetwork, err)
	}

	songs := make([]Song, 0, len(page.Items))
	for _, track := range page.Items {
		names := make([]string, 0, len(track.Artists))
		for _, artist := range track.Artists {
			names = append(names, artist.Name)
		}

		song := Song{
			Name:       track.Name,
			Artist:     strings.Join(names, ", "),
			SpotifyURL: track.ExternalURLs.Spotify,
		}
		if len(track.Album.Images) > 0 {
			song.AlbumArt = track.Album.Images[0].URL
		}

		songs = append(songs, song)
	}

	return songs, nil
}

// clientContext injects the bounded-timeout HTTP client into the [oauth2]
// exchange machinery.
func (s *SpotifyService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// bundleFromToken maps an [oauth2.Token] into a credential bundle, retaining
// the prior refresh token when the response omitted a new one.
func bundleFromToken(tok *oauth2.Token, prior string) (tokens.Bundle, error) {
	if tok.AccessToken == "" {
		return tokens.Bundle{}, fmt.Errorf("%w: no access token in response", shared.ErrRemoteRejected)
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = prior
	}

	var expiresAt int64
	if !tok.Expiry.IsZero() {
		expiresAt = tok.Expiry.UnixMilli()
	}

	return tokens.Bundle{
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// classifyExchangeErr splits token endpoint failures into remote rejections
// and transport-level errors.
func classifyExchangeErr(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s returned status %d", shared.ErrRemoteRejected, op, retrieveErr.Response.StatusCode)
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrNetwork, op, err)
}
