package sessions

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps each session as a hash under "<prefix><refreshToken>"
// that Redis expires together with the session.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-based session repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(refresh string) string {
	return r.prefix + refresh
}

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session for %s already expired", s.UID)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	k := r.key(s.RefreshToken)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, map[string]interface{}{
			"id":              s.ID,
			"uid":             s.UID,
			"providerRefresh": s.ProviderRefresh,
			"createdAt":       s.CreatedAt.UnixMilli(),
			"expiresAt":       s.ExpiresAt.UnixMilli(),
		})
		p.Expire(ctx, k, ttl)
		return nil
	})
	return err
}

func (r *RedisRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	h, err := r.client.HGetAll(ctx, r.key(refresh)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, nil
	}
	created, _ := strconv.ParseInt(h["createdAt"], 10, 64)
	expires, err := strconv.ParseInt(h["expiresAt"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s: bad expiresAt: %w", refresh, err)
	}
	return &Session{
		ID:              h["id"],
		RefreshToken:    refresh,
		UID:             h["uid"],
		ProviderRefresh: h["providerRefresh"],
		CreatedAt:       time.UnixMilli(created).UTC(),
		ExpiresAt:       time.UnixMilli(expires).UTC(),
	}, nil
}

func (r *RedisRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	return r.client.Del(ctx, r.key(refresh)).Err()
}
