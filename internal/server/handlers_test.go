package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/encore/internal/services"
	"github.com/desertthunder/encore/internal/shared"
	tu "github.com/desertthunder/encore/internal/testing"
	"github.com/desertthunder/encore/internal/tokens"
)

const frontendURL = "http://localhost:5173"

func findCookie(t *testing.T, res *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestConnectHandler(t *testing.T) {
	spotify := &tu.FakeSpotify{}
	handler := NewConnectHandler(spotify, shared.NewLogger(nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/spotify/connect", nil))
	res := rec.Result()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	authURL := body["authUrl"]
	if authURL == "" {
		t.Fatal("expected authUrl in response")
	}

	cookie := findCookie(t, res, stateCookie)
	if cookie == nil {
		t.Fatal("expected state cookie to be set")
	}
	if !cookie.HttpOnly {
		t.Error("expected state cookie to be HttpOnly")
	}
	if !strings.Contains(authURL, cookie.Value) {
		t.Error("expected auth URL state to match the cookie value")
	}
}

func TestCallbackHandler(t *testing.T) {
	codec := tokens.NewCodec("callback_test_secret", time.Hour)
	logger := shared.NewLogger(nil)

	// request builds a callback request carrying the state cookie.
	request := func(query string, cookieState string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/spotify/callback?"+query, nil)
		if cookieState != "" {
			r.AddCookie(&http.Cookie{Name: stateCookie, Value: cookieState})
		}
		return r
	}

	location := func(t *testing.T, rec *httptest.ResponseRecorder) *url.URL {
		t.Helper()
		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		loc, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatalf("failed to parse redirect location: %v", err)
		}
		return loc
	}

	t.Run("missing code redirects with error and no exchange", func(t *testing.T) {
		spotify := &tu.FakeSpotify{}
		handler := NewCallbackHandler(spotify, codec, frontendURL, logger)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("state=abc", "abc"))

		loc := location(t, rec)
		if got := loc.Query().Get("error"); got != "no_code" {
			t.Errorf("expected error indicator no_code, got %s", got)
		}
		if spotify.ExchangeCalls != 0 {
			t.Errorf("expected zero exchange calls, got %d", spotify.ExchangeCalls)
		}
	})

	t.Run("state mismatch redirects with error and no exchange", func(t *testing.T) {
		spotify := &tu.FakeSpotify{}
		handler := NewCallbackHandler(spotify, codec, frontendURL, logger)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("code=auth_code&state=evil", "issued"))

		loc := location(t, rec)
		if got := loc.Query().Get("error"); got != "state_mismatch" {
			t.Errorf("expected error indicator state_mismatch, got %s", got)
		}
		if spotify.ExchangeCalls != 0 {
			t.Errorf("expected zero exchange calls, got %d", spotify.ExchangeCalls)
		}
	})

	t.Run("missing state cookie redirects with error", func(t *testing.T) {
		spotify := &tu.FakeSpotify{}
		handler := NewCallbackHandler(spotify, codec, frontendURL, logger)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("code=auth_code&state=abc", ""))

		loc := location(t, rec)
		if got := loc.Query().Get("error"); got != "state_mismatch" {
			t.Errorf("expected error indicator state_mismatch, got %s", got)
		}
	})

	t.Run("exchange failure redirects with error", func(t *testing.T) {
		spotify := &tu.FakeSpotify{
			ExchangeFunc: func(ctx context.Context, code string) (tokens.Bundle, error) {
				return tokens.Bundle{}, fmt.Errorf("%w: code exchange returned status 400", shared.ErrRemoteRejected)
			},
		}
		handler := NewCallbackHandler(spotify, codec, frontendURL, logger)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("code=used_code&state=abc", "abc"))

		loc := location(t, rec)
		if got := loc.Query().Get("error"); got != "auth_failed" {
			t.Errorf("expected error indicator auth_failed, got %s", got)
		}
		if spotify.ExchangeCalls != 1 {
			t.Errorf("expected one exchange call, got %d", spotify.ExchangeCalls)
		}
	})

	t.Run("successful exchange redirects with a signed token", func(t *testing.T) {
		bundle := tokens.Bundle{
			AccessToken:  "granted_access",
			RefreshToken: "granted_refresh",
			ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
		}

		spotify := &tu.FakeSpotify{
			ExchangeFunc: func(ctx context.Context, code string) (tokens.Bundle, error) {
				if code != "auth_code" {
					t.Errorf("expected code auth_code, got %s", code)
				}
				return bundle, nil
			},
		}
		handler := NewCallbackHandler(spotify, codec, frontendURL, logger)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("code=auth_code&state=abc", "abc"))

		loc := location(t, rec)
		raw := loc.Query().Get("token")
		if raw == "" {
			t.Fatal("expected signed token in redirect")
		}

		decoded, err := codec.Decode(raw)
		if err != nil {
			t.Fatalf("redirect token should decode: %v", err)
		}
		if decoded != bundle {
			t.Errorf("expected token to carry the exchanged bundle, got %+v", decoded)
		}

		cleared := findCookie(t, rec.Result(), stateCookie)
		if cleared == nil || cleared.MaxAge != -1 {
			t.Error("expected state cookie to be cleared")
		}
	})
}

func TestSongsHandler(t *testing.T) {
	codec := tokens.NewCodec("songs_test_secret", time.Hour)
	logger := shared.NewLogger(nil)

	topSongs := []services.Song{
		{Name: "First Song", Artist: "Artist A, Artist B", AlbumArt: "https://img.example/a.jpg", SpotifyURL: "https://open.spotify.com/track/1"},
		{Name: "Second Song", Artist: "Solo Artist", SpotifyURL: "https://open.spotify.com/track/2"},
		{Name: "Third Song", Artist: "Artist C", SpotifyURL: "https://open.spotify.com/track/3"},
		{Name: "Fourth Song", Artist: "Artist D", SpotifyURL: "https://open.spotify.com/track/4"},
		{Name: "Fifth Song", Artist: "Artist E", SpotifyURL: "https://open.spotify.com/track/5"},
	}

	newHandler := func(spotify *tu.FakeSpotify) *SongsHandler {
		return NewSongsHandler(NewAuthorizer(codec, spotify, logger), spotify, logger)
	}

	encode := func(t *testing.T, b tokens.Bundle) string {
		t.Helper()
		raw, err := codec.Encode(b)
		if err != nil {
			t.Fatalf("failed to encode test token: %v", err)
		}
		return raw
	}

	request := func(token string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/spotify/songs", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		return r
	}

	liveToken := func(t *testing.T) string {
		return encode(t, tokens.Bundle{
			AccessToken:  "live_access",
			RefreshToken: "live_refresh",
			ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
		})
	}

	t.Run("no authorization header yields 401 with zero remote calls", func(t *testing.T) {
		spotify := &tu.FakeSpotify{}
		handler := newHandler(spotify)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request(""))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if spotify.RefreshCalls != 0 || spotify.FetchCalls != 0 {
			t.Error("expected zero remote calls")
		}
	})

	t.Run("invalid token yields 401 without refresh", func(t *testing.T) {
		spotify := &tu.FakeSpotify{}
		handler := newHandler(spotify)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request("garbage"))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if spotify.RefreshCalls != 0 || spotify.FetchCalls != 0 {
			t.Error("expected zero remote calls")
		}
	})

	t.Run("valid token fetches once with the embedded access token", func(t *testing.T) {
		spotify := &tu.FakeSpotify{
			TopTracksFunc: func(ctx context.Context, accessToken string) ([]services.Song, error) {
				return topSongs, nil
			},
		}
		handler := newHandler(spotify)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request(liveToken(t)))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if spotify.FetchCalls != 1 {
			t.Errorf("expected one fetch, got %d", spotify.FetchCalls)
		}
		if spotify.LastFetchToken != "live_access" {
			t.Errorf("expected fetch with embedded access token, got %s", spotify.LastFetchToken)
		}

		var body songsResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(body.Songs) != 5 {
			t.Errorf("expected 5 songs, got %d", len(body.Songs))
		}
		if body.Songs[0].Artist != "Artist A, Artist B" {
			t.Errorf("expected joined artists, got %s", body.Songs[0].Artist)
		}
		if body.Token != "" {
			t.Error("expected no rotated token for live credentials")
		}
	})

	t.Run("expired token refreshes and returns a rotated token", func(t *testing.T) {
		stale := encode(t, tokens.Bundle{
			AccessToken:  "stale_access",
			RefreshToken: "stale_refresh",
			ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
		})

		spotify := &tu.FakeSpotify{
			RefreshFunc: func(ctx context.Context, refreshToken string) (tokens.Bundle, error) {
				return tokens.Bundle{
					AccessToken:  "renewed_access",
					RefreshToken: "stale_refresh",
					ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
				}, nil
			},
			TopTracksFunc: func(ctx context.Context, accessToken string) ([]services.Song, error) {
				return topSongs, nil
			},
		}
		handler := newHandler(spotify)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request(stale))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if spotify.RefreshCalls != 1 {
			t.Errorf("expected one refresh, got %d", spotify.RefreshCalls)
		}
		if spotify.LastFetchToken != "renewed_access" {
			t.Errorf("expected fetch with renewed token, got %s", spotify.LastFetchToken)
		}

		var body songsResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body.Token == "" {
			t.Fatal("expected rotated token in response")
		}
		if _, err := codec.Decode(body.Token); err != nil {
			t.Errorf("rotated token should decode: %v", err)
		}
	})

	t.Run("failed refresh yields 401 and no fetch", func(t *testing.T) {
		stale := encode(t, tokens.Bundle{
			AccessToken:  "stale_access",
			RefreshToken: "revoked_refresh",
			ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
		})

		spotify := &tu.FakeSpotify{
			RefreshFunc: func(ctx context.Context, refreshToken string) (tokens.Bundle, error) {
				return tokens.Bundle{}, errors.New("refresh rejected")
			},
		}
		handler := newHandler(spotify)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request(stale))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if spotify.FetchCalls != 0 {
			t.Errorf("expected zero fetches, got %d", spotify.FetchCalls)
		}
	})

	t.Run("fetch failure yields 502 distinct from auth failure", func(t *testing.T) {
		spotify := &tu.FakeSpotify{
			TopTracksFunc: func(ctx context.Context, accessToken string) ([]services.Song, error) {
				return nil, fmt.Errorf("%w: spotify API status 503", shared.ErrRemoteRejected)
			},
		}
		handler := newHandler(spotify)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request(liveToken(t)))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("sequential requests fetch independently", func(t *testing.T) {
		spotify := &tu.FakeSpotify{
			TopTracksFunc: func(ctx context.Context, accessToken string) ([]services.Song, error) {
				return topSongs, nil
			},
		}
		handler := newHandler(spotify)
		token := liveToken(t)

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, request(token))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
		}

		if spotify.FetchCalls != 2 {
			t.Errorf("expected two independent fetches, got %d", spotify.FetchCalls)
		}
	})
}

func TestHealthHandler(t *testing.T) {
	handler := &HealthHandler{}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %s", body["status"])
	}
}

func TestBearerToken(t *testing.T) {
	tc := []struct {
		name   string
		header string
		want   string
	}{
		{name: "bearer token", header: "Bearer abc123", want: "abc123"},
		{name: "case insensitive scheme", header: "bearer abc123", want: "abc123"},
		{name: "missing header", header: "", want: ""},
		{name: "wrong scheme", header: "Basic abc123", want: ""},
		{name: "scheme only", header: "Bearer", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(r); got != tt.want {
				t.Errorf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
