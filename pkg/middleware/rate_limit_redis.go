package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Noel-Mtf/yesshare/pkg/logger"
	"github.com/Noel-Mtf/yesshare/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimitMiddleware provides a fixed-window limiter shared by every
// replica. A window opens with a caller's first request and admits
// floor(rps*window)+burst requests before Redis expires it.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	if window < time.Second {
		window = time.Second
	}
	allowedPerWindow := int64(rps*window.Seconds()) + int64(burst)
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		redisKey := "rl:" + limitKey(c)

		cnt, err := client.Incr(ctx, redisKey).Result()
		if err != nil {
			logger.Errorf("rate limit: redis incr: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
			return
		}
		if cnt == 1 {
			if err := client.Expire(ctx, redisKey, window).Err(); err != nil {
				logger.Warnf("rate limit: redis expire %s: %v", redisKey, err)
			}
		}
		if cnt > allowedPerWindow {
			retry := window
			if ttl, err := client.TTL(ctx, redisKey).Result(); err == nil && ttl > 0 {
				retry = ttl
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
