package domain

import "errors"

// Sentinel errors shared across repository, service, and handler layers.
// Handlers map these to status codes; nothing below the handler boundary
// knows about HTTP.
var (
	// ErrSessionNotFound covers both "never existed" and "already
	// superseded by a prior refresh" - callers cannot distinguish the two.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired means the session window has closed and the user
	// must re-authenticate with the identity provider.
	ErrSessionExpired = errors.New("session expired")

	// ErrRotationConflict means a concurrent refresh rotated the token
	// first. The losing caller must fail closed, never overwrite.
	ErrRotationConflict = errors.New("refresh token already rotated")

	// ErrInvalidAssertion means the third-party identity assertion did not
	// verify server-side.
	ErrInvalidAssertion = errors.New("invalid identity assertion")
)
