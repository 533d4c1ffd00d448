package identity

import (
	"context"
)

// Assertion is the normalized result of verifying a third-party identity
// token. Implementations return identity facts only; session decisions
// belong to the service layer.
type Assertion struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
}

// Verifier re-verifies a raw third-party identity token server-side.
// Client-asserted identity is never trusted on its own.
type Verifier interface {
	// Verify checks the raw token against the provider and returns the
	// verified assertion, or an error if the token does not check out.
	Verify(ctx context.Context, rawToken string) (*Assertion, error)
}
