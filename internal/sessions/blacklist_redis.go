package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist records revoked access tokens until they would have expired.
// A Blacklist without a Redis client accepts every token.
type Blacklist struct {
	client *redis.Client
	prefix string
}

func NewBlacklist(c *redis.Client) *Blacklist {
	return &Blacklist{client: c, prefix: "blacklist:access:"}
}

// Revoke stores token for ttl. No-op without Redis or for a non-positive ttl.
func (b *Blacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if b == nil || b.client == nil || ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, b.prefix+token, "1", ttl).Err()
}

// IsRevoked reports whether token was revoked and has not yet expired.
func (b *Blacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	if b == nil || b.client == nil {
		return false, nil
	}
	n, err := b.client.Exists(ctx, b.prefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
