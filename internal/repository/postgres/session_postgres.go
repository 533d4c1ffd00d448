package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/domain"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/repository"
)

type sessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository.
// Both token hash columns carry unique indexes so lookups by token value
// are keyed, not scanned.
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// Upsert creates or unconditionally replaces the record for an identity.
func (r *sessionRepository) Upsert(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (
			identity, access_token_hash, refresh_token_hash,
			issued_at, expires_at, created_at
		) VALUES (
			:identity, :access_token_hash, :refresh_token_hash,
			:issued_at, :expires_at, :created_at
		)
		ON CONFLICT (identity) DO UPDATE SET
			access_token_hash = EXCLUDED.access_token_hash,
			refresh_token_hash = EXCLUDED.refresh_token_hash,
			issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at`

	_, err := r.db.NamedExecContext(ctx, query, session)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	return nil
}

// GetByRefreshTokenHash retrieves the session holding the given refresh
// token hash.
func (r *sessionRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	query := `
		SELECT identity, access_token_hash, refresh_token_hash,
			   issued_at, expires_at, created_at
		FROM sessions
		WHERE refresh_token_hash = $1`

	var session domain.Session
	err := r.db.GetContext(ctx, &session, query, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session by refresh token: %w", err)
	}

	return &session, nil
}

// GetByAccessTokenHash retrieves the session holding the given access
// token hash.
func (r *sessionRepository) GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	query := `
		SELECT identity, access_token_hash, refresh_token_hash,
			   issued_at, expires_at, created_at
		FROM sessions
		WHERE access_token_hash = $1`

	var session domain.Session
	err := r.db.GetContext(ctx, &session, query, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session by access token: %w", err)
	}

	return &session, nil
}

// Rotate swaps the token hashes conditioned on the stored refresh token
// hash still equaling the presented one. Zero rows affected means another
// refresh won the race (or the record is gone); either way the caller
// must fail closed.
func (r *sessionRepository) Rotate(ctx context.Context, oldRefreshHash string, next *domain.Session) error {
	query := `
		UPDATE sessions
		SET access_token_hash = $1,
			refresh_token_hash = $2,
			issued_at = $3
		WHERE identity = $4 AND refresh_token_hash = $5`

	result, err := r.db.ExecContext(ctx, query,
		next.AccessTokenHash,
		next.RefreshTokenHash,
		next.IssuedAt,
		next.Identity,
		oldRefreshHash,
	)
	if err != nil {
		return fmt.Errorf("failed to rotate session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return domain.ErrRotationConflict
	}

	return nil
}

// DeleteByIdentity removes the record for an identity. Idempotent.
func (r *sessionRepository) DeleteByIdentity(ctx context.Context, identity string) error {
	query := `DELETE FROM sessions WHERE identity = $1`

	_, err := r.db.ExecContext(ctx, query, identity)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// DeleteExpired removes all sessions whose window has closed.
func (r *sessionRepository) DeleteExpired(ctx context.Context) error {
	query := `DELETE FROM sessions WHERE expires_at <= $1`

	_, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return nil
}
