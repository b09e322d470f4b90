package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/auth-server/internal/domain"
	"github.com/dom/auth-server/internal/repository"
	"github.com/dom/auth-server/internal/repository/postgres"
	"github.com/dom/auth-server/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(username, email string) *domain.User {
	return &domain.User{
		ID:           uuid.New(),
		Name:         "Test User",
		Username:     username,
		Email:        email,
		PasswordHash: "hashedpassword",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func TestUserRepository_Create(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	tests := []struct {
		name    string
		user    *domain.User
		wantErr error
	}{
		{
			name: "successful creation",
			user: newUser("testuser", "test@example.com"),
		},
		{
			name:    "duplicate username",
			user:    newUser("testuser", "other@example.com"),
			wantErr: repository.ErrDuplicate,
		},
		{
			name:    "duplicate email",
			user:    newUser("otheruser", "test@example.com"),
			wantErr: repository.ErrDuplicate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(ctx, tt.user)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestUserRepository_Lookups(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := newUser("alice", "a@x.com")
	require.NoError(t, repo.Create(ctx, user))

	t.Run("by id", func(t *testing.T) {
		found, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", found.Username)
		assert.Equal(t, "hashedpassword", found.PasswordHash)
		assert.False(t, found.Verified)

		_, err = repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("by email", func(t *testing.T) {
		found, err := repo.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)

		_, err = repo.GetByEmail(ctx, "alice")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("by username or email", func(t *testing.T) {
		for _, key := range []string{"alice", "a@x.com"} {
			found, err := repo.GetByUsernameOrEmail(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, user.ID, found.ID)
		}

		_, err := repo.GetByUsernameOrEmail(ctx, "bob")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := repo.ExistsByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.ExistsByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.ExistsByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.ExistsByEmail(ctx, "b@x.com")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestUserRepository_Update(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := newUser("alice", "a@x.com")
	require.NoError(t, repo.Create(ctx, user))

	verified := true
	updated, err := repo.Update(ctx, user.ID, domain.UserPatch{Verified: &verified})
	require.NoError(t, err)
	assert.True(t, updated.Verified)
	assert.Equal(t, "hashedpassword", updated.PasswordHash, "unpatched fields are kept")
	assert.Equal(t, "alice", updated.Username)

	hash := "newhash"
	updated, err = repo.Update(ctx, user.ID, domain.UserPatch{PasswordHash: &hash})
	require.NoError(t, err)
	assert.Equal(t, "newhash", updated.PasswordHash)
	assert.True(t, updated.Verified)

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", stored.PasswordHash)
	assert.True(t, stored.Verified)

	_, err = repo.Update(ctx, uuid.New(), domain.UserPatch{Verified: &verified})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
