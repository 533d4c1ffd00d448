package repository

import (
	"context"

	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/domain"
)

// SessionRepository is the credential-store contract. Lookups by token
// hash are keyed capabilities (unique index / secondary key), never table
// scans. Rotate is the only conditional write: it must compare the stored
// refresh token hash against the presented one atomically and return
// domain.ErrRotationConflict when they no longer match.
type SessionRepository interface {
	// Upsert creates the record for session.Identity, unconditionally
	// replacing any prior record. Used at issuance only.
	Upsert(ctx context.Context, session *domain.Session) error

	// GetByRefreshTokenHash returns the session whose current refresh
	// token hash equals hash, or domain.ErrSessionNotFound.
	GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error)

	// GetByAccessTokenHash returns the session whose current access
	// token hash equals hash, or domain.ErrSessionNotFound.
	GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error)

	// Rotate replaces the token hashes for next.Identity, conditioned on
	// the stored refresh token hash still equaling oldRefreshHash.
	// Returns domain.ErrRotationConflict if the condition fails.
	Rotate(ctx context.Context, oldRefreshHash string, next *domain.Session) error

	// DeleteByIdentity removes the record for identity. Deleting an
	// absent record is not an error.
	DeleteByIdentity(ctx context.Context, identity string) error

	// DeleteExpired removes every record whose window has closed.
	DeleteExpired(ctx context.Context) error
}
