package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dom/auth-server/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Update applies patch and returns the updated record.
	Update(ctx context.Context, id uuid.UUID, patch domain.UserPatch) (*domain.User, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	UpdateExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type VerificationCodeRepository interface {
	Create(ctx context.Context, code *domain.VerificationCode) error
	// GetValid returns the code only if it has the given type and expires after now.
	GetValid(ctx context.Context, id string, codeType domain.CodeType, now time.Time) (*domain.VerificationCode, error)
	// CountRecent counts codes of a type for a user created after createdAfter that expire after now.
	CountRecent(ctx context.Context, userID uuid.UUID, codeType domain.CodeType, createdAfter, now time.Time) (int64, error)
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, id string) (bool, error)
}

// Transactor runs fn so that every repository call made with the ctx it is
// handed commits or rolls back as one unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Repositories struct {
	User    UserRepository
	Session SessionRepository
	Code    VerificationCodeRepository
	Tx      Transactor
}
