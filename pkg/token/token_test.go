package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"
)

func testKeyPair(t *testing.T) ([]byte, []byte) {
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
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})

	return privPEM, pubPEM
}

func newTestService(t *testing.T, accessExpiry, refreshExpiry time.Duration) *TokenService {
	t.Helper()

	priv, pub := testKeyPair(t)
	svc, err := NewTokenService(priv, pub, accessExpiry, refreshExpiry, "test-issuer")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestGenerateAndValidateRoundTrip(t *testing.T) {
	svc := newTestService(t, time.Hour, 10*time.Hour)

	pair, err := svc.GenerateTokenPair("u1@example.com")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be non-empty")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}

	claims, err := svc.ValidateToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken(access): %v", err)
	}
	if claims.Identity != "u1@example.com" {
		t.Errorf("identity = %q, want u1@example.com", claims.Identity)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Errorf("token type = %q, want %q", claims.TokenType, TokenTypeAccess)
	}

	refreshClaims, err := svc.ValidateToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ValidateToken(refresh): %v", err)
	}
	if refreshClaims.TokenType != TokenTypeRefresh {
		t.Errorf("token type = %q, want %q", refreshClaims.TokenType, TokenTypeRefresh)
	}
}

func TestExpiredTokenFailsWithExpired(t *testing.T) {
	// Negative expiry mints tokens that are already past their window.
	svc := newTestService(t, -time.Second, -time.Second)

	pair, err := svc.GenerateTokenPair("u1@example.com")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	_, err = svc.ValidateToken(pair.AccessToken)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("error = %v, want ErrTokenExpired", err)
	}
}

func TestTamperedTokenFailsWithInvalid(t *testing.T) {
	svc := newTestService(t, time.Hour, 10*time.Hour)

	pair, err := svc.GenerateTokenPair("u1@example.com")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	// Flip a character in the payload segment; the signature no longer
	// matches.
	parts := strings.Split(pair.AccessToken, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d segments", len(parts))
	}
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	claims, err := svc.ValidateToken(tampered)
	if err == nil {
		t.Fatalf("tampered token verified, identity = %q", claims.Identity)
	}
	if errors.Is(err, ErrTokenExpired) {
		t.Fatalf("tampered token reported as expired: %v", err)
	}
}

func TestTokenFromDifferentKeyFailsWithInvalid(t *testing.T) {
	issuing := newTestService(t, time.Hour, 10*time.Hour)
	verifying := newTestService(t, time.Hour, 10*time.Hour)

	pair, err := issuing.GenerateTokenPair("u1@example.com")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	_, err = verifying.ValidateToken(pair.AccessToken)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("error = %v, want ErrInvalidToken", err)
	}
}

func TestMalformedTokenFails(t *testing.T) {
	svc := newTestService(t, time.Hour, 10*time.Hour)

	for _, tokenString := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		if _, err := svc.ValidateToken(tokenString); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("ValidateToken(%q) error = %v, want ErrMalformedToken", tokenString, err)
		}
	}
}

func TestTokenCarriesExpiry(t *testing.T) {
	svc := newTestService(t, time.Hour, 10*time.Hour)

	before := time.Now()
	pair, err := svc.GenerateTokenPair("u1@example.com")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}
	after := time.Now()

	if pair.ExpiresAt.Before(before.Add(time.Hour)) || pair.ExpiresAt.After(after.Add(time.Hour)) {
		t.Errorf("pair expiry %v outside expected window", pair.ExpiresAt)
	}

	claims, err := svc.ValidateToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.ExpiresAt == nil {
		t.Fatal("refresh claims missing expiry")
	}
	want := before.Add(10 * time.Hour)
	if claims.ExpiresAt.Time.Before(want.Add(-time.Minute)) || claims.ExpiresAt.Time.After(want.Add(time.Minute)) {
		t.Errorf("refresh expiry %v, want about %v", claims.ExpiresAt.Time, want)
	}
}
