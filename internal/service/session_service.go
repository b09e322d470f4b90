package service

import (
	"context"
	"errors"
	"time"

	"github.com/dom/auth-server/internal/domain"
	"github.com/dom/auth-server/internal/repository"
	"github.com/google/uuid"
)

type SessionService struct {
	sessions repository.SessionRepository
	now      func() time.Time
}

func NewSessionService(sessions repository.SessionRepository, now func() time.Time) *SessionService {
	if now == nil {
		now = time.Now
	}
	return &SessionService{sessions: sessions, now: now}
}

func (s *SessionService) Create(ctx context.Context, userID uuid.UUID, userAgent string) (*domain.Session, error) {
	now := s.now()
	session := &domain.Session{
		ID:        uuid.New(),
		UserID:    userID,
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.SessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, domain.Internal("Failed to create session", err)
	}
	return session, nil
}

// FindActive fails with ErrSessionExpired when the session is gone or past its expiry.
func (s *SessionService) FindActive(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, domain.Internal("Failed to load session", err)
	}
	if !session.Active(s.now()) {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// RenewIfNearExpiry extends a session that has a day or less left to a fresh 30 days.
// Sessions with more time left are returned untouched.
func (s *SessionService) RenewIfNearExpiry(ctx context.Context, session *domain.Session) (*domain.Session, bool, error) {
	now := s.now()
	if !session.NearExpiry(now) {
		return session, false, nil
	}

	expiresAt := now.Add(domain.SessionTTL)
	if err := s.sessions.UpdateExpiry(ctx, session.ID, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, ErrSessionExpired
		}
		return nil, false, domain.Internal("Failed to renew session", err)
	}

	renewed := *session
	renewed.ExpiresAt = expiresAt
	return &renewed, true, nil
}

// Delete is idempotent.
func (s *SessionService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.sessions.Delete(ctx, id); err != nil {
		return domain.Internal("Failed to delete session", err)
	}
	return nil
}

func (s *SessionService) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		return domain.Internal("Failed to delete sessions", err)
	}
	return nil
}
