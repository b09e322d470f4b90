package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/auth-server/internal/domain"
	"github.com/dom/auth-server/internal/repository"
	"github.com/dom/auth-server/internal/repository/memory"
	"github.com/dom/auth-server/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionService(t *testing.T) (*service.SessionService, repository.SessionRepository, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	repos := memory.NewRepositories(memory.NewStore())
	return service.NewSessionService(repos.Session, clock.Now), repos.Session, clock
}

func TestSessionService_Create(t *testing.T) {
	svc, _, clock := newSessionService(t)
	userID := uuid.New()

	session, err := svc.Create(context.Background(), userID, "firefox")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, session.ID)
	assert.Equal(t, userID, session.UserID)
	assert.Equal(t, "firefox", session.UserAgent)
	assert.Equal(t, clock.Now(), session.CreatedAt)
	assert.Equal(t, session.CreatedAt.Add(30*24*time.Hour), session.ExpiresAt)
}

func TestSessionService_FindActive(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newSessionService(t)

	session, err := svc.Create(ctx, uuid.New(), "")
	require.NoError(t, err)

	found, err := svc.FindActive(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)

	_, err = svc.FindActive(ctx, uuid.New())
	assert.ErrorIs(t, err, service.ErrSessionExpired)

	clock.Advance(domain.SessionTTL)
	_, err = svc.FindActive(ctx, session.ID)
	assert.ErrorIs(t, err, service.ErrSessionExpired, "a session is inactive at its expiry instant")
}

func TestSessionService_RenewIfNearExpiry(t *testing.T) {
	tests := []struct {
		name        string
		advance     time.Duration
		wantRenewed bool
	}{
		{name: "plenty of time left", advance: 10 * 24 * time.Hour},
		{name: "just over a day left", advance: 29*24*time.Hour - time.Second},
		{name: "exactly a day left", advance: 29 * 24 * time.Hour, wantRenewed: true},
		{name: "minutes left", advance: 30*24*time.Hour - time.Minute, wantRenewed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, repo, clock := newSessionService(t)

			session, err := svc.Create(ctx, uuid.New(), "")
			require.NoError(t, err)
			original := session.ExpiresAt

			clock.Advance(tt.advance)
			renewed, ok, err := svc.RenewIfNearExpiry(ctx, session)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRenewed, ok)

			stored, err := repo.GetByID(ctx, session.ID)
			require.NoError(t, err)

			if tt.wantRenewed {
				assert.Equal(t, clock.Now().Add(domain.SessionTTL), renewed.ExpiresAt)
				assert.Equal(t, renewed.ExpiresAt, stored.ExpiresAt)
				assert.Equal(t, original, session.ExpiresAt, "the caller's copy is left alone")
				return
			}
			assert.Equal(t, original, renewed.ExpiresAt)
			assert.Equal(t, original, stored.ExpiresAt)
		})
	}
}

func TestSessionService_RenewDeletedSession(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newSessionService(t)

	session, err := svc.Create(ctx, uuid.New(), "")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, session.ID))

	clock.Advance(29*24*time.Hour + time.Hour)
	_, _, err = svc.RenewIfNearExpiry(ctx, session)
	assert.ErrorIs(t, err, service.ErrSessionExpired)
}

func TestSessionService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newSessionService(t)
	userID := uuid.New()

	first, err := svc.Create(ctx, userID, "a")
	require.NoError(t, err)
	second, err := svc.Create(ctx, userID, "b")
	require.NoError(t, err)
	other, err := svc.Create(ctx, uuid.New(), "c")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, first.ID))
	require.NoError(t, svc.Delete(ctx, first.ID), "delete is idempotent")
	_, err = repo.GetByID(ctx, first.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, svc.DeleteAllForUser(ctx, userID))
	_, err = repo.GetByID(ctx, second.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetByID(ctx, other.ID)
	assert.NoError(t, err)
}
