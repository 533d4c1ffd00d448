package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/domain"
	"github.com/isabelfaulds/yearly-progress-bars-sub000/internal/repository"
)

const (
	identityKeyPrefix = "session:identity:"
	refreshKeyPrefix  = "session:refresh:"
	accessKeyPrefix   = "session:access:"
)

type sessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a Redis-backed session repository. The
// record lives under an identity key; two secondary keys map each token
// hash back to the identity so lookups by token value stay keyed. All
// keys expire with the session, so expired records vanish on their own.
func NewSessionRepository(client *redis.Client) repository.SessionRepository {
	return &sessionRepository{client: client}
}

func identityKey(identity string) string { return identityKeyPrefix + identity }
func refreshKey(hash string) string      { return refreshKeyPrefix + hash }
func accessKey(hash string) string       { return accessKeyPrefix + hash }

// Upsert unconditionally replaces the record for an identity, dropping
// the secondary keys of any record it supersedes.
func (r *sessionRepository) Upsert(ctx context.Context, session *domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("failed to upsert session: expires_at is in the past")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	prior, err := r.getByIdentity(ctx, session.Identity)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prior != nil {
			pipe.Del(ctx, refreshKey(prior.RefreshTokenHash), accessKey(prior.AccessTokenHash))
		}
		pipe.Set(ctx, identityKey(session.Identity), data, ttl)
		pipe.Set(ctx, refreshKey(session.RefreshTokenHash), session.Identity, ttl)
		pipe.Set(ctx, accessKey(session.AccessTokenHash), session.Identity, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	return nil
}

func (r *sessionRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	return r.getByTokenKey(ctx, refreshKey(hash), func(s *domain.Session) bool {
		return s.RefreshTokenHash == hash
	})
}

func (r *sessionRepository) GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	return r.getByTokenKey(ctx, accessKey(hash), func(s *domain.Session) bool {
		return s.AccessTokenHash == hash
	})
}

// getByTokenKey resolves a secondary key to its session record. The
// record is re-checked against the presented hash so a stale secondary
// key can never resurrect a superseded token.
func (r *sessionRepository) getByTokenKey(ctx context.Context, key string, current func(*domain.Session) bool) (*domain.Session, error) {
	identity, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token key: %w", err)
	}

	session, err := r.getByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}

	if !current(session) {
		return nil, domain.ErrSessionNotFound
	}

	return session, nil
}

func (r *sessionRepository) getByIdentity(ctx context.Context, identity string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, identityKey(identity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// Rotate swaps the token hashes under a WATCH on the identity key. The
// transaction aborts if another refresh touches the record between the
// read and the write, so at most one of two racing rotations commits.
func (r *sessionRepository) Rotate(ctx context.Context, oldRefreshHash string, next *domain.Session) error {
	key := identityKey(next.Identity)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrRotationConflict
		}
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}

		var current domain.Session
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}

		if current.RefreshTokenHash != oldRefreshHash {
			return domain.ErrRotationConflict
		}

		ttl := time.Until(next.ExpiresAt)
		if ttl <= 0 {
			return domain.ErrSessionExpired
		}

		nextData, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, refreshKey(current.RefreshTokenHash), accessKey(current.AccessTokenHash))
			pipe.Set(ctx, key, nextData, ttl)
			pipe.Set(ctx, refreshKey(next.RefreshTokenHash), next.Identity, ttl)
			pipe.Set(ctx, accessKey(next.AccessTokenHash), next.Identity, ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrRotationConflict
	}

	return err
}

// DeleteByIdentity removes the record and its secondary keys. Idempotent.
func (r *sessionRepository) DeleteByIdentity(ctx context.Context, identity string) error {
	session, err := r.getByIdentity(ctx, identity)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	err = r.client.Del(ctx,
		identityKey(identity),
		refreshKey(session.RefreshTokenHash),
		accessKey(session.AccessTokenHash),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// DeleteExpired is a no-op for Redis: every key is written with a TTL
// matching the session window, so expired records are evicted by the
// server itself.
func (r *sessionRepository) DeleteExpired(ctx context.Context) error {
	return nil
}
