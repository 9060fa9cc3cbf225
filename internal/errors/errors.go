// Package errors defines the sentinel errors shared across the session
// layer. Endpoint-specific errors (server-rejected messages, transport
// failures) live with the API client in package budgetan.
package errors

import "errors"

// Session errors.
var (
	// ErrNotAuthenticated is returned by the authenticated-call wrapper
	// when no access token is stored.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAuthenticationFailed is returned when a token refresh fails and
	// the session is forced back to the unauthenticated state.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRefreshTokenMissing is returned by refresh when no refresh token
	// is stored.
	ErrRefreshTokenMissing = errors.New("no refresh token stored")
)

// Response errors.
var (
	// ErrInvalidResponse is returned when a response body that must carry
	// data is missing or unparseable.
	ErrInvalidResponse = errors.New("invalid response from server")
)
