// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"

	"github.com/desertthunder/encore/internal/services"
	"github.com/desertthunder/encore/internal/tokens"
)

// FakeSpotify is a test double for [services.OAuthService] and
// [services.Fetcher] with per-operation call counts.
type FakeSpotify struct {
	AuthURLFunc   func(state string) string
	ExchangeFunc  func(ctx context.Context, code string) (tokens.Bundle, error)
	RefreshFunc   func(ctx context.Context, refreshToken string) (tokens.Bundle, error)
	TopTracksFunc func(ctx context.Context, accessToken string) ([]services.Song, error)

	ExchangeCalls int
	RefreshCalls  int
	FetchCalls    int

	// LastFetchToken records the access token presented on the most recent
	// top-tracks fetch.
	LastFetchToken string
}

func (f *FakeSpotify) AuthURL(state string) string {
	if f.AuthURLFunc != nil {
		return f.AuthURLFunc(state)
	}
	return "https://accounts.spotify.test/authorize?state=" + state
}

func (f *FakeSpotify) ExchangeCode(ctx context.Context, code string) (tokens.Bundle, error) {
	f.ExchangeCalls++
	if f.ExchangeFunc != nil {
		return f.ExchangeFunc(ctx, code)
	}
	return tokens.Bundle{}, errors.New("unexpected exchange call")
}

func (f *FakeSpotify) Refresh(ctx context.Context, refreshToken string) (tokens.Bundle, error) {
	f.RefreshCalls++
	if f.RefreshFunc != nil {
		return f.RefreshFunc(ctx, refreshToken)
	}
	return tokens.Bundle{}, errors.New("unexpected refresh call")
}

func (f *FakeSpotify) TopTracks(ctx context.Context, accessToken string) ([]services.Song, error) {
	f.FetchCalls++
	f.LastFetchToken = accessToken
	if f.TopTracksFunc != nil {
		return f.TopTracksFunc(ctx, accessToken)
	}
	return []services.Song{}, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}
