package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/encore/internal/services"
	"github.com/desertthunder/encore/internal/shared"
	"github.com/desertthunder/encore/internal/tokens"
)

// stateCookie round-trips the anti-replay state value between the connect
// and callback requests. It lives for one authorization attempt only.
const stateCookie = "spotify_auth_state"

const stateCookieMaxAge = 600 // seconds

// ConnectHandler begins the delegation flow by handing the browser an
// authorization URL and binding the attempt to a state cookie.
type ConnectHandler struct {
	spotify services.OAuthService
	logger  *log.Logger
}

// NewConnectHandler creates a handler for the authorize-redirect endpoint.
func NewConnectHandler(spotify services.OAuthService, logger *log.Logger) *ConnectHandler {
	return &ConnectHandler{spotify: spotify, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *ConnectHandler) Routes() []string {
	return []string{"/api/spotify/connect"}
}

func (h *ConnectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to begin authorization")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"authUrl": h.spotify.AuthURL(state)})
}

// CallbackHandler completes the delegation flow: it verifies the returned
// state, exchanges the authorization code, seals the credentials into a
// signed token, and redirects back to the frontend.
//
// Both branches redirect; neither returns a JSON body.
type CallbackHandler struct {
	spotify     services.OAuthService
	codec       *tokens.Codec
	frontendURL string
	logger      *log.Logger
}

// NewCallbackHandler creates a handler for the OAuth callback endpoint.
func NewCallbackHandler(spotify services.OAuthService, codec *tokens.Codec, frontendURL string, logger *log.Logger) *CallbackHandler {
	return &CallbackHandler{spotify: spotify, codec: codec, frontendURL: frontendURL, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/api/spotify/callback"}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The state cookie is consumed by this round trip regardless of outcome.
	clearCookie := &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1, HttpOnly: true}

	state := r.URL.Query().Get("state")
	issued, err := r.Cookie(stateCookie)
	if state == "" || err != nil || issued.Value != state {
		h.logger.Warn("callback state mismatch")
		http.SetCookie(w, clearCookie)
		h.redirectError(w, r, "state_mismatch")
		return
	}
	http.SetCookie(w, clearCookie)

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectError(w, r, "no_code")
		return
	}

	bundle, err := h.spotify.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("code exchange failed", "error", err)
		h.redirectError(w, r, "auth_failed")
		return
	}

	signed, err := h.codec.Encode(bundle)
	if err != nil {
		h.logger.Error("failed to encode token", "error", err)
		h.redirectError(w, r, "auth_failed")
		return
	}

	http.Redirect(w, r, h.frontendURL+"?token="+url.QueryEscape(signed), http.StatusFound)
}

func (h *CallbackHandler) redirectError(w http.ResponseWriter, r *http.Request, indicator string) {
	http.Redirect(w, r, h.frontendURL+"?error="+url.QueryEscape(indicator), http.StatusFound)
}

// songsResponse is the payload for a successful top-tracks fetch. Token is
// set only when the signed token was rotated during the request.
type songsResponse struct {
	Songs []services.Song `json:"songs"`
	Token string          `json:"token,omitempty"`
}

// SongsHandler serves the protected top-tracks endpoint.
type SongsHandler struct {
	auth    *Authorizer
	fetcher services.Fetcher
	logger  *log.Logger
}

// NewSongsHandler creates a handler for the protected songs endpoint.
func NewSongsHandler(auth *Authorizer, fetcher services.Fetcher, logger *log.Logger) *SongsHandler {
	return &SongsHandler{auth: auth, fetcher: fetcher, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *SongsHandler) Routes() []string {
	return []string{"/api/spotify/songs"}
}

func (h *SongsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session, err := h.auth.Authorize(r.Context(), bearerToken(r))
	if err != nil {
		h.logger.Debug("authorization rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	songs, err := h.fetcher.TopTracks(r.Context(), session.AccessToken)
	if err != nil {
		// The credential may still be usable; signal a transient upstream
		// failure distinct from an authentication failure.
		h.logger.Error("top tracks fetch failed", "error", err)
		writeError(w, fetchStatus(err), "failed to fetch top tracks")
		return
	}

	writeJSON(w, http.StatusOK, songsResponse{Songs: songs, Token: session.RotatedToken})
}

// HealthHandler reports service liveness.
type HealthHandler struct{}

// Routes returns the HTTP routes this handler serves.
func (h *HealthHandler) Routes() []string {
	return []string{"/api/health"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// bearerToken extracts the signed token from the Authorization header, or
// returns the empty string when none is presented.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// fetchStatus maps resource fetch failures onto the 500-class split.
func fetchStatus(err error) int {
	if errors.Is(err, shared.ErrRemoteRejected) || errors.Is(err, shared.ErrNetwork) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
