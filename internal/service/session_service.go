package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/domain"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/identity"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/repository"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/pkg/token"
)

// SessionService owns the session lifecycle: exchanging a verified
// third-party assertion for a local token pair, rotating that pair, and
// tearing the session down. All state lives in the repository; the
// service itself is stateless and safe for concurrent use.
type SessionService struct {
	sessionRepo  repository.SessionRepository
	verifier     identity.Verifier
	tokenService *token.TokenService
}

type IssueRequest struct {
	IDToken string `json:"id_token" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
}

type IssueResponse struct {
	Identity string            `json:"identity"`
	Tokens   *domain.TokenPair `json:"-"`
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	verifier identity.Verifier,
	tokenService *token.TokenService,
) *SessionService {
	return &SessionService{
		sessionRepo:  sessionRepo,
		verifier:     verifier,
		tokenService: tokenService,
	}
}

// Issue exchanges a third-party identity assertion for a new local
// session. The assertion is re-verified server-side; nothing is written
// if that fails. Any prior session for the identity is replaced outright.
func (s *SessionService) Issue(ctx context.Context, req IssueRequest) (*IssueResponse, error) {
	assertion, err := s.verifier.Verify(ctx, req.IDToken)
	if err != nil {
		log.Printf("[SESSION_SERVICE] Assertion verification failed: %v", err)
		return nil, domain.ErrInvalidAssertion
	}

	// The client-supplied email is advisory only; the verified assertion
	// is the sole source of the identity string.
	ident := assertion.Email

	tokenPair, err := s.tokenService.GenerateTokenPair(ident)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token pair: %w", err)
	}

	now := time.Now()
	session := &domain.Session{
		Identity:         ident,
		AccessTokenHash:  hashToken(tokenPair.AccessToken),
		RefreshTokenHash: hashToken(tokenPair.RefreshToken),
		IssuedAt:         now,
		ExpiresAt:        now.Add(s.tokenService.RefreshExpiry()),
		CreatedAt:        now,
	}

	if err := s.sessionRepo.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return &IssueResponse{
		Identity: ident,
		Tokens:   tokenPair,
	}, nil
}

// Refresh rotates the token pair for the session holding refreshToken.
// The write is conditioned on the stored refresh token still equaling the
// presented one, so of two racing refreshes exactly one succeeds; the
// loser gets domain.ErrRotationConflict and must fail closed.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	oldHash := hashToken(refreshToken)

	session, err := s.sessionRepo.GetByRefreshTokenHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	if session.IsExpired(time.Now()) {
		// Best effort cleanup; the sweep catches anything missed here.
		if err := s.sessionRepo.DeleteByIdentity(ctx, session.Identity); err != nil {
			log.Printf("[SESSION_SERVICE] Failed to delete expired session for %s: %v", session.Identity, err)
		}
		return nil, domain.ErrSessionExpired
	}

	tokenPair, err := s.tokenService.GenerateTokenPair(session.Identity)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token pair: %w", err)
	}

	next := &domain.Session{
		Identity:         session.Identity,
		AccessTokenHash:  hashToken(tokenPair.AccessToken),
		RefreshTokenHash: hashToken(tokenPair.RefreshToken),
		IssuedAt:         time.Now(),
		// Rotation does not extend the session: the window set at
		// issuance stands until the user signs in again.
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	}

	if err := s.sessionRepo.Rotate(ctx, oldHash, next); err != nil {
		if errors.Is(err, domain.ErrRotationConflict) {
			log.Printf("[SESSION_SERVICE] Lost refresh race for %s", session.Identity)
			return nil, domain.ErrRotationConflict
		}
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	return tokenPair, nil
}

// Invalidate tears down the session matching accessToken. Idempotent: a
// missing record means logout already happened, which is success. Issued
// access tokens stay verifiable until natural expiry; their short
// lifetime bounds the blast radius.
func (s *SessionService) Invalidate(ctx context.Context, accessToken string) error {
	session, err := s.sessionRepo.GetByAccessTokenHash(ctx, hashToken(accessToken))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up session: %w", err)
	}

	if err := s.sessionRepo.DeleteByIdentity(ctx, session.Identity); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// SweepExpired deletes every session whose window has closed. Called on a
// timer from main.
func (s *SessionService) SweepExpired(ctx context.Context) error {
	if err := s.sessionRepo.DeleteExpired(ctx); err != nil {
		return fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	return nil
}

// hashToken derives the storage key for a token value. Raw tokens are
// never persisted.
func hashToken(tokenValue string) string {
	hash := sha256.Sum256([]byte(tokenValue))
	return base64.URLEncoding.EncodeToString(hash[:])
}
