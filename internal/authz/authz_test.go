package authz

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/isabelfaulds/yearly-progress-bars-sub000/pkg/token"
)

func newTestTokenService(t *testing.T, accessExpiry time.Duration) *token.TokenService {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	svc, err := token.NewTokenService(privPEM, pubPEM, accessExpiry, 10*time.Hour, "test-issuer")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestAuthorizeAllowsValidAccessToken(t *testing.T) {
	tokens := newTestTokenService(t, time.Hour)
	authorizer := NewAuthorizer(tokens)

	pair, err := tokens.GenerateTokenPair("u1@example.com")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	decision := authorizer.Authorize(pair.AccessToken, "/api/*")
	if !decision.Allowed() {
		t.Fatal("expected Allow")
	}
	if decision.Identity != "u1@example.com" {
		t.Errorf("identity = %q, want u1@example.com", decision.Identity)
	}
	if decision.Resource != "/api/*" {
		t.Errorf("resource = %q, want /api/*", decision.Resource)
	}
}

func TestAuthorizeDeniesAnonymously(t *testing.T) {
	tokens := newTestTokenService(t, time.Hour)
	expired := newTestTokenService(t, -time.Second)
	otherKey := newTestTokenService(t, time.Hour)
	authorizer := NewAuthorizer(tokens)

	expiredPair, err := expired.GenerateTokenPair("u1@example.com")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}
	// Expired token signed with the same key as the verifier under test.
	expiredAuthorizer := NewAuthorizer(expired)

	forgedPair, err := otherKey.GenerateTokenPair("u1@example.com")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	validPair, err := tokens.GenerateTokenPair("u1@example.com")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	cases := []struct {
		name       string
		authorizer *Authorizer
		token      string
	}{
		{"absent", authorizer, ""},
		{"malformed", authorizer, "not-a-token"},
		{"expired", expiredAuthorizer, expiredPair.AccessToken},
		{"forged", authorizer, forgedPair.AccessToken},
		{"refresh token as access", authorizer, validPair.RefreshToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := tc.authorizer.Authorize(tc.token, "/api/*")
			if decision.Allowed() {
				t.Fatal("expected Deny")
			}
			// Every deny looks identical: anonymous, no failure detail.
			if decision.Identity != AnonymousIdentity {
				t.Errorf("identity = %q, want %q", decision.Identity, AnonymousIdentity)
			}
		})
	}
}
