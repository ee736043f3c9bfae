package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateAndValidateSession(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	r, err := svc.CreateSession(ctx, "uid-1", "kc-refresh", time.Hour)
	require.NoError(t, err)
	require.Len(t, r, 64)

	sess, err := svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, "uid-1", sess.UID)
	require.Equal(t, "kc-refresh", sess.ProviderRefresh)

	gone, err := svc.DeleteRefresh(ctx, r)
	require.NoError(t, err)
	require.Equal(t, "kc-refresh", gone.ProviderRefresh)

	sess, err = svc.ValidateRefresh(ctx, r)
	require.NoError(t, err)
	require.Nil(t, sess)

	gone, err = svc.DeleteRefresh(ctx, r)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestExpiredSessionIsRemoved(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &Session{RefreshToken: "old", UID: "u", ExpiresAt: time.Now().Add(-time.Minute)}))

	sess, err := svc.ValidateRefresh(ctx, "old")
	require.NoError(t, err)
	require.Nil(t, sess)
	left, _ := repo.GetByRefresh(ctx, "old")
	require.Nil(t, left)
}

func TestEmptyRefreshIsInvalid(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	sess, err := svc.ValidateRefresh(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, sess)
}
