package service

import (
	"context"
	"errors"
	"time"

	"github.com/dom/auth-server/internal/domain"
	"github.com/dom/auth-server/internal/repository"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const codeIDLength = 24

// VerificationService issues and consumes single-use codes.
type VerificationService struct {
	codes repository.VerificationCodeRepository
	tx    repository.Transactor
	now   func() time.Time
}

// NewVerificationService runs Consume inside tx. A nil tx runs it directly.
func NewVerificationService(codes repository.VerificationCodeRepository, tx repository.Transactor, now func() time.Time) *VerificationService {
	if now == nil {
		now = time.Now
	}
	return &VerificationService{codes: codes, tx: tx, now: now}
}

// Issue creates a code of the given type. Password reset codes are rate limited.
func (s *VerificationService) Issue(ctx context.Context, userID uuid.UUID, codeType domain.CodeType, ttl time.Duration) (*domain.VerificationCode, error) {
	if codeType == domain.CodePasswordReset {
		if err := s.CheckRateLimit(ctx, userID, codeType); err != nil {
			return nil, err
		}
	}

	id, err := gonanoid.New(codeIDLength)
	if err != nil {
		return nil, domain.Internal("Failed to generate verification code", err)
	}

	now := s.now()
	code := &domain.VerificationCode{
		ID:        id,
		UserID:    userID,
		Type:      codeType,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.codes.Create(ctx, code); err != nil {
		return nil, domain.Internal("Failed to store verification code", err)
	}
	return code, nil
}

// CheckRateLimit rejects a new password reset code while another one issued in the
// last five minutes is still valid. Other code types are never limited.
func (s *VerificationService) CheckRateLimit(ctx context.Context, userID uuid.UUID, codeType domain.CodeType) error {
	if codeType != domain.CodePasswordReset {
		return nil
	}

	now := s.now()
	count, err := s.codes.CountRecent(ctx, userID, codeType, now.Add(-domain.PasswordResetWindow), now)
	if err != nil {
		return domain.Internal("Failed to check rate limit", err)
	}
	if count >= 1 {
		return ErrTooManyRequests
	}
	return nil
}

// Consume validates the code, runs apply with its owner and then deletes it, all in
// one transaction. The code survives a failing apply. Concurrent consumers of the
// same code are serialised by the store; all but the first fail like an unknown code.
func (s *VerificationService) Consume(ctx context.Context, codeID string, codeType domain.CodeType, apply func(ctx context.Context, userID uuid.UUID) error) (uuid.UUID, error) {
	var owner uuid.UUID
	err := s.withinTx(ctx, func(ctx context.Context) error {
		code, err := s.codes.GetValid(ctx, codeID, codeType, s.now())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidOrExpiredCode
			}
			return domain.Internal("Failed to look up verification code", err)
		}

		if apply != nil {
			if err := apply(ctx, code.UserID); err != nil {
				return err
			}
		}

		deleted, err := s.codes.Delete(ctx, code.ID)
		if err != nil {
			return domain.Internal("Failed to consume verification code", err)
		}
		if !deleted {
			return ErrInvalidOrExpiredCode
		}
		owner = code.UserID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return owner, nil
}

func (s *VerificationService) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithinTx(ctx, fn)
}
