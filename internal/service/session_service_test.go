package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "authmedia/internal/errors"
	"authmedia/internal/model"
)

func TestSessionService_CreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := newTestSessions(store)
	user := seedUser(t, store, "alice@example.com", model.RoleUser)

	session, err := svc.Create(ctx, user.ID, "10.0.0.1", "go-test")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	require.NotNil(t, session.IPAddress)
	assert.Equal(t, "10.0.0.1", *session.IPAddress)

	gotUser, gotSession, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, gotUser.ID)
	assert.Equal(t, session.ID, gotSession.ID)
}

func TestSessionService_AuthenticateRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("empty token", func(t *testing.T) {
		svc := newTestSessions(newTestStore(t))
		_, _, err := svc.Authenticate(ctx, "")
		assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc := newTestSessions(newTestStore(t))
		_, _, err := svc.Authenticate(ctx, "nope")
		assert.ErrorIs(t, err, apperrors.ErrInvalidSession)
	})

	t.Run("expired session", func(t *testing.T) {
		store := newTestStore(t)
		svc := newTestSessions(store)
		user := seedUser(t, store, "old@example.com", model.RoleUser)
		svc.now = func() time.Time { return time.Now().Add(-31 * 24 * time.Hour) }
		session, err := svc.Create(ctx, user.ID, "", "")
		require.NoError(t, err)

		svc.now = time.Now
		_, _, err = svc.Authenticate(ctx, session.Token)
		assert.ErrorIs(t, err, apperrors.ErrInvalidSession)
	})

	t.Run("active ban", func(t *testing.T) {
		store := newTestStore(t)
		svc := newTestSessions(store)
		user := seedUser(t, store, "banned@example.com", model.RoleUser)
		session, err := svc.Create(ctx, user.ID, "", "")
		require.NoError(t, err)
		require.NoError(t, store.Users().Update(ctx, user.ID, map[string]interface{}{"banned": true, "banReason": "spam"}))

		_, _, err = svc.Authenticate(ctx, session.Token)
		assert.ErrorIs(t, err, apperrors.ErrBanned)
		assert.Contains(t, err.Error(), "spam")
	})
}

func TestSessionService_ExpiredBanIsLifted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := newTestSessions(store)
	user := seedUser(t, store, "lifted@example.com", model.RoleUser)
	session, err := svc.Create(ctx, user.ID, "", "")
	require.NoError(t, err)
	require.NoError(t, store.Users().Update(ctx, user.ID, map[string]interface{}{
		"banned":       true,
		"banReason":    "temp",
		"banExpiresAt": time.Now().UTC().Add(-time.Hour),
	}))

	got, _, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.False(t, got.Banned)

	stored, err := store.Users().FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.Banned)
	assert.Nil(t, stored.BanReason)
	assert.Nil(t, stored.BanExpiresAt)
}

func TestSessionService_Refresh(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := newTestSessions(store)
	user := seedUser(t, store, "refresh@example.com", model.RoleUser)

	session, err := svc.Create(ctx, user.ID, "", "")
	require.NoError(t, err)
	original := session.ExpiresAt

	same, err := svc.Refresh(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, original, same.ExpiresAt)

	svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	refreshed, err := svc.Refresh(ctx, session)
	require.NoError(t, err)
	assert.True(t, refreshed.ExpiresAt.After(original))

	stored, err := store.Sessions().FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, refreshed.ExpiresAt, stored.ExpiresAt, time.Second)
}

func TestSessionService_RevokeAsAdmin(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := newTestSessions(store)
	admin := seedUser(t, store, "admin@example.com", model.RoleAdmin)
	user := seedUser(t, store, "user@example.com", model.RoleUser)

	current, err := svc.Create(ctx, admin.ID, "", "")
	require.NoError(t, err)
	target, err := svc.Create(ctx, user.ID, "", "")
	require.NoError(t, err)

	err = svc.RevokeAsAdmin(ctx, current, current.ID)
	assert.ErrorIs(t, err, apperrors.ErrSelfRevoke)
	_, err = store.Sessions().FindByID(ctx, current.ID)
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.RevokeAsAdmin(ctx, current, "missing"), apperrors.ErrSessionNotFound)

	require.NoError(t, svc.RevokeAsAdmin(ctx, current, target.ID))
	_, _, err = svc.Authenticate(ctx, target.Token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSession)
}

func TestSessionService_RevokeUserSessionsKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := newTestSessions(store)
	user := seedUser(t, store, "many@example.com", model.RoleAdmin)

	current, err := svc.Create(ctx, user.ID, "", "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, user.ID, "", "")
		require.NoError(t, err)
	}

	n, err := svc.RevokeUserSessions(ctx, current, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, current.ID, active[0].ID)
	assert.Equal(t, "many@example.com", active[0].UserEmail)
}
