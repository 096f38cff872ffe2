package server

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/encore/internal/services"
	"github.com/desertthunder/encore/internal/shared"
	"github.com/desertthunder/encore/internal/tokens"
)

// Session is the outcome of authorizing a protected request.
type Session struct {
	// AccessToken is the Spotify access token to use for the resource fetch.
	AccessToken string

	// RotatedToken carries a reissued signed token when the underlying
	// credentials were refreshed. The client must replace its stored token.
	RotatedToken string
}

// Authorizer drives the per-request session lifecycle: decode the presented
// signed token, detect expiry of the embedded credentials, refresh and
// reissue, or reject.
//
// It holds no per-request state and is safe for concurrent use.
type Authorizer struct {
	codec     *tokens.Codec
	exchanger services.Exchanger
	logger    *log.Logger
	now       func() time.Time
}

// NewAuthorizer creates an [Authorizer] from the codec and exchanger.
func NewAuthorizer(codec *tokens.Codec, exchanger services.Exchanger, logger *log.Logger) *Authorizer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Authorizer{
		codec:     codec,
		exchanger: exchanger,
		logger:    logger,
		now:       time.Now,
	}
}

// Authorize validates the presented signed token and returns a [Session]
// ready for the resource fetch.
//
// A missing or invalid token fails without any remote call. Expired embedded
// credentials trigger exactly one refresh; on success the bundle is replaced
// atomically and re-encoded, on failure the credential is dead and the
// caller must restart the authorization flow.
func (a *Authorizer) Authorize(ctx context.Context, raw string) (*Session, error) {
	if raw == "" {
		return nil, shared.ErrNotAuthenticated
	}

	bundle, err := a.codec.Decode(raw)
	if err != nil {
		return nil, err
	}

	if !bundle.Expired(a.now()) {
		return &Session{AccessToken: bundle.AccessToken}, nil
	}

	fresh, err := a.exchanger.Refresh(ctx, bundle.RefreshToken)
	if err != nil {
		a.logger.Warn("credential refresh failed", "error", err)
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	rotated, err := a.codec.Encode(fresh)
	if err != nil {
		return nil, fmt.Errorf("failed to reissue token: %w", err)
	}

	return &Session{AccessToken: fresh.AccessToken, RotatedToken: rotated}, nil
}
