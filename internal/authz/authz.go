package authz

import (
	"github.com/isabelfaulds/yearly-progress-bars-sub000/pkg/token"
)

type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"

	// AnonymousIdentity is bound to every Deny so callers never learn
	// anything about why verification failed.
	AnonymousIdentity = "anonymous"
)

// Decision is the per-request authorization result. Derived transiently;
// never persisted.
type Decision struct {
	Identity string `json:"identity"`
	Effect   Effect `json:"effect"`
	Resource string `json:"resource"`
}

func (d Decision) Allowed() bool {
	return d.Effect == EffectAllow
}

// Authorizer gates inbound API requests on the access token alone. It
// never touches the credential store: verification is purely
// cryptographic, which keeps the per-request cost flat.
type Authorizer struct {
	tokenService *token.TokenService
}

func NewAuthorizer(tokenService *token.TokenService) *Authorizer {
	return &Authorizer{tokenService: tokenService}
}

// Authorize verifies the access token and yields an Allow bound to the
// verified identity, scoped broadly so repeat calls from the same caller
// need no re-authorization. Every verification failure - expired, forged,
// malformed, absent, wrong token type - collapses to the same anonymous
// Deny.
func (a *Authorizer) Authorize(accessToken, resource string) Decision {
	deny := Decision{
		Identity: AnonymousIdentity,
		Effect:   EffectDeny,
		Resource: resource,
	}

	if accessToken == "" {
		return deny
	}

	claims, err := a.tokenService.ValidateToken(accessToken)
	if err != nil {
		return deny
	}

	if claims.TokenType != token.TokenTypeAccess {
		return deny
	}

	return Decision{
		Identity: claims.Identity,
		Effect:   EffectAllow,
		Resource: resource,
	}
}
