package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Signed token errors
	ErrTokenMalformed   = fmt.Errorf("malformed token")
	ErrInvalidSignature = fmt.Errorf("invalid token signature")
	ErrTokenExpired     = fmt.Errorf("token expired")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")

	// Remote API errors
	ErrRemoteRejected = fmt.Errorf("remote endpoint rejected request")
	ErrNetwork        = fmt.Errorf("network failure")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
