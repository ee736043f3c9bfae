package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (*RedisRepository, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return NewRedisRepository(redis.NewClient(&redis.Options{Addr: m.Addr()}), "test:session:"), m
}

func TestRedisRepository_CreateGetDelete(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	s := &Session{
		RefreshToken:    "r1",
		UID:             "uid-1",
		ProviderRefresh: "kc-r1",
		ExpiresAt:       time.Now().UTC().Add(5 * time.Second),
	}
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.GetByRefresh(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "uid-1", got.UID)
	require.Equal(t, "kc-r1", got.ProviderRefresh)
	require.Equal(t, s.ExpiresAt.UnixMilli(), got.ExpiresAt.UnixMilli())
	require.False(t, got.CreatedAt.IsZero())

	require.NoError(t, repo.DeleteByRefresh(ctx, "r1"))
	got, err = repo.GetByRefresh(ctx, "r1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRepository_TTLExpiry(t *testing.T) {
	repo, m := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &Session{RefreshToken: "r2", UID: "uid-2", ExpiresAt: time.Now().Add(time.Second)}))

	got, err := repo.GetByRefresh(ctx, "r2")
	require.NoError(t, err)
	require.NotNil(t, got)

	m.FastForward(2 * time.Second)
	got, err = repo.GetByRefresh(ctx, "r2")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisRepository_RejectsExpiredSession(t *testing.T) {
	repo, _ := newRedisRepo(t)
	err := repo.Create(context.Background(), &Session{RefreshToken: "r3", UID: "uid-3", ExpiresAt: time.Now().Add(-time.Minute)})
	require.Error(t, err)
}
