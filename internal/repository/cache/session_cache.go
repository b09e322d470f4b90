package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dom/auth-server/internal/domain"
	"github.com/dom/auth-server/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultSessionTTL = time.Minute

// SessionRepository is a read-through cache in front of another SessionRepository.
// Writes go to the underlying store first and then evict the cached entry. Deletes
// also leave a tombstone for one entry TTL so a reader that loaded the session before
// the delete cannot write it back.
type SessionRepository struct {
	next   repository.SessionRepository
	client *redis.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewSessionRepository(next repository.SessionRepository, client *redis.Client, ttl time.Duration, log logrus.FieldLogger) *SessionRepository {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionRepository{next: next, client: client, ttl: ttl, log: log}
}

func sessionKey(id uuid.UUID) string {
	return "auth:session:" + id.String()
}

func userSessionsKey(userID uuid.UUID) string {
	return "auth:user-sessions:" + userID.String()
}

func deletedSessionKey(id uuid.UUID) string {
	return "auth:session-deleted:" + id.String()
}

func deletedUserSessionsKey(userID uuid.UUID) string {
	return "auth:user-sessions-deleted:" + userID.String()
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	return r.next.Create(ctx, session)
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	switch {
	case err == nil:
		var session domain.Session
		if jsonErr := json.Unmarshal(raw, &session); jsonErr == nil {
			return &session, nil
		}
		r.log.WithField("session_id", id).Warn("dropping unreadable cached session")
		if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
			r.log.WithError(err).WithField("session_id", id).Warn("session cache eviction failed")
		}
	case !errors.Is(err, redis.Nil):
		r.log.WithError(err).Warn("session cache read failed")
	}

	readAt := time.Now()
	session, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, session, readAt)
	return session, nil
}

func (r *SessionRepository) UpdateExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	if err := r.next.UpdateExpiry(ctx, id, expiresAt); err != nil {
		return err
	}
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("evict session %s: %w", id, err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, deletedSessionKey(id), 1, r.ttl)
		p.Del(ctx, sessionKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("evict session %s: %w", id, err)
	}
	return nil
}

func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if err := r.next.DeleteByUserID(ctx, userID); err != nil {
		return err
	}

	// The tombstone goes in before the index is read so a concurrent store either
	// sees it or lands in the index read below.
	var members *redis.StringSliceCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, deletedUserSessionsKey(userID), 1, r.ttl)
		members = p.SMembers(ctx, userSessionsKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("evict sessions of user %s: %w", userID, err)
	}

	ids := members.Val()
	keys := make([]string, 0, len(ids)+1)
	for _, raw := range ids {
		if id, parseErr := uuid.Parse(raw); parseErr == nil {
			keys = append(keys, sessionKey(id))
		}
	}
	keys = append(keys, userSessionsKey(userID))
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("evict sessions of user %s: %w", userID, err)
	}
	return nil
}

// store caches a session read from the backing store at readAt. It gives up when a
// delete has tombstoned the session, or when the read is older than a tombstone lives.
func (r *SessionRepository) store(ctx context.Context, session *domain.Session, readAt time.Time) {
	if time.Since(readAt) >= r.ttl {
		return
	}
	ttl := r.ttl
	if remaining := time.Until(session.ExpiresAt); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return
	}

	tombstones := []string{deletedSessionKey(session.ID), deletedUserSessionsKey(session.UserID)}
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, tombstones...).Result()
		if err != nil || n > 0 {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, sessionKey(session.ID), raw, ttl)
			p.SAdd(ctx, userSessionsKey(session.UserID), session.ID.String())
			p.Expire(ctx, userSessionsKey(session.UserID), domain.SessionTTL)
			return nil
		})
		return err
	}, tombstones...)
	switch {
	case errors.Is(err, redis.TxFailedErr):
		r.log.WithField("session_id", session.ID).Debug("session deleted while caching, skipped")
	case err != nil:
		r.log.WithError(err).Warn("session cache write failed")
	}
}
