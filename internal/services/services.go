// package services defines interfaces for the remote Spotify collaborators
//
// The token endpoint and the resource endpoint are modeled as injected
// interfaces so callers can be tested without network access.
package services

import (
	"context"

	"github.com/desertthunder/encore/internal/tokens"
)

// Song is the domain shape handed to the presentation layer.
type Song struct {
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	AlbumArt   string `json:"albumArt,omitempty"`
	SpotifyURL string `json:"spotifyUrl"`
}

// Exchanger performs the two grant exchanges against the token endpoint.
// Each call is a single remote round trip with no retries.
type Exchanger interface {
	// ExchangeCode exchanges a single-use authorization code for a
	// credential bundle.
	ExchangeCode(ctx context.Context, code string) (tokens.Bundle, error)

	// Refresh exchanges a refresh token for a renewed bundle. When the
	// endpoint omits a new refresh token, the prior one is retained.
	Refresh(ctx context.Context, refreshToken string) (tokens.Bundle, error)
}

// Fetcher retrieves the authenticated user's top tracks.
type Fetcher interface {
	TopTracks(ctx context.Context, accessToken string) ([]Song, error)
}

// OAuthService combines redirect building with the token exchanges.
type OAuthService interface {
	Exchanger

	// AuthURL assembles the authorization URL that begins the delegation
	// flow, carrying the given anti-replay state value.
	AuthURL(state string) string
}
