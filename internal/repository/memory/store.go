// Package memory is an in-process credential store with the same per-record
// guarantees as the postgres one. It backs unit tests and local runs without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dom/auth-server/internal/domain"
	"github.com/dom/auth-server/internal/repository"
	"github.com/google/uuid"
)

type Store struct {
	// txMu serialises WithinTx callers; mu still guards each record access.
	txMu     sync.Mutex
	mu       sync.RWMutex
	users    map[uuid.UUID]domain.User
	sessions map[uuid.UUID]domain.Session
	codes    map[string]domain.VerificationCode
}

func NewStore() *Store {
	return &Store{
		users:    make(map[uuid.UUID]domain.User),
		sessions: make(map[uuid.UUID]domain.Session),
		codes:    make(map[string]domain.VerificationCode),
	}
}

func NewRepositories(s *Store) *repository.Repositories {
	return &repository.Repositories{
		User:    &userRepository{s},
		Session: &sessionRepository{s},
		Code:    &codeRepository{s},
		Tx:      &transactor{s},
	}
}

type txKey struct{}

type transactor struct{ s *Store }

// WithinTx runs transactions one at a time. Nothing is rolled back on error.
func (t *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, t.s))
}

type userRepository struct{ s *Store }

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	for _, u := range r.s.users {
		if u.ID == user.ID || u.Username == user.Username || u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.find(ctx, func(u domain.User) bool { return u.ID == id })
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(ctx, func(u domain.User) bool { return u.Email == email })
}

func (r *userRepository) GetByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*domain.User, error) {
	return r.find(ctx, func(u domain.User) bool {
		return u.Username == usernameOrEmail || u.Email == usernameOrEmail
	})
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, func(u domain.User) bool { return u.Username == username })
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, func(u domain.User) bool { return u.Email == email })
}

func (r *userRepository) Update(ctx context.Context, id uuid.UUID, patch domain.UserPatch) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.Verified != nil {
		user.Verified = *patch.Verified
	}
	if patch.PasswordHash != nil {
		user.PasswordHash = *patch.PasswordHash
	}
	if !patch.Empty() {
		user.UpdatedAt = time.Now()
	}
	r.s.users[id] = user
	return &user, nil
}

func (r *userRepository) find(ctx context.Context, match func(domain.User) bool) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) exists(ctx context.Context, match func(domain.User) bool) (bool, error) {
	_, err := r.find(ctx, match)
	if err == repository.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

type sessionRepository struct{ s *Store }

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if _, ok := r.s.sessions[session.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.sessions[session.ID] = *session
	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	session, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

func (r *sessionRepository) UpdateExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	session, ok := r.s.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	if expiresAt.After(session.ExpiresAt) {
		session.ExpiresAt = expiresAt
		r.s.sessions[id] = session
	}
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.sessions, id)
	return nil
}

func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, session := range r.s.sessions {
		if session.UserID == userID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

type codeRepository struct{ s *Store }

func (r *codeRepository) Create(ctx context.Context, code *domain.VerificationCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.codes[code.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.codes[code.ID] = *code
	return nil
}

func (r *codeRepository) GetValid(ctx context.Context, id string, codeType domain.CodeType, now time.Time) (*domain.VerificationCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	code, ok := r.s.codes[id]
	if !ok || !code.Valid(codeType, now) {
		return nil, repository.ErrNotFound
	}
	return &code, nil
}

func (r *codeRepository) CountRecent(ctx context.Context, userID uuid.UUID, codeType domain.CodeType, createdAfter, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var count int64
	for _, code := range r.s.codes {
		if code.UserID == userID && code.Valid(codeType, now) && code.CreatedAt.After(createdAfter) {
			count++
		}
	}
	return count, nil
}

func (r *codeRepository) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.codes[id]; !ok {
		return false, nil
	}
	delete(r.s.codes, id)
	return true, nil
}
