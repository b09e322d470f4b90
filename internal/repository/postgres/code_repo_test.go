package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dom/auth-server/internal/domain"
	"github.com/dom/auth-server/internal/repository"
	"github.com/dom/auth-server/internal/repository/postgres"
	"github.com/dom/auth-server/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeRepository(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewCodeRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	now := time.Now().UTC().Truncate(time.Microsecond)

	reset := &domain.VerificationCode{
		ID:        "reset-code-000000000001",
		UserID:    user.ID,
		Type:      domain.CodePasswordReset,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.PasswordResetTTL),
	}
	verify := &domain.VerificationCode{
		ID:        "verify-code-00000000001",
		UserID:    user.ID,
		Type:      domain.CodeEmailVerification,
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(domain.EmailVerificationTTL),
	}
	require.NoError(t, repo.Create(ctx, reset))
	require.NoError(t, repo.Create(ctx, verify))

	t.Run("duplicate id", func(t *testing.T) {
		assert.ErrorIs(t, repo.Create(ctx, reset), repository.ErrDuplicate)
	})

	t.Run("get valid", func(t *testing.T) {
		found, err := repo.GetValid(ctx, reset.ID, domain.CodePasswordReset, now)
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.UserID)

		_, err = repo.GetValid(ctx, reset.ID, domain.CodeEmailVerification, now)
		assert.ErrorIs(t, err, repository.ErrNotFound, "wrong type")

		_, err = repo.GetValid(ctx, reset.ID, domain.CodePasswordReset, reset.ExpiresAt)
		assert.ErrorIs(t, err, repository.ErrNotFound, "expired at its expiry instant")

		_, err = repo.GetValid(ctx, "missing", domain.CodePasswordReset, now)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("count recent", func(t *testing.T) {
		count, err := repo.CountRecent(ctx, user.ID, domain.CodePasswordReset, now.Add(-domain.PasswordResetWindow), now)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		count, err = repo.CountRecent(ctx, user.ID, domain.CodePasswordReset, now, now)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count, "created_at must be strictly after the window start")

		count, err = repo.CountRecent(ctx, user.ID, domain.CodePasswordReset, now.Add(-time.Minute), reset.ExpiresAt)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count, "expired codes are not counted")

		count, err = repo.CountRecent(ctx, user.ID, domain.CodeEmailVerification, now.Add(-domain.PasswordResetWindow), now)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})

	t.Run("concurrent delete removes once", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			removed atomic.Int32
		)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.Delete(ctx, verify.ID)
				assert.NoError(t, err)
				if ok {
					removed.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, removed.Load())
	})
}
