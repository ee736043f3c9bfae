package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func redisLimited(t *testing.T) (*gin.Engine, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	r := gin.New()
	// callers name themselves through a header so subjects can be told apart
	r.Use(func(c *gin.Context) {
		if sub := c.GetHeader("X-Test-Sub"); sub != "" {
			c.Set(ClaimsKey, map[string]interface{}{"sub": sub})
		}
		c.Next()
	})
	r.Use(RedisRateLimitMiddleware(redis.NewClient(&redis.Options{Addr: m.Addr()}), 1, 0, time.Second))
	r.GET("/r", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, m
}

func hit(r *gin.Engine, sub string) int {
	req := httptest.NewRequest(http.MethodGet, "/r", nil)
	if sub != "" {
		req.Header.Set("X-Test-Sub", sub)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRedisRateLimitMiddleware_WindowResets(t *testing.T) {
	r, m := redisLimited(t)
	require.Equal(t, http.StatusOK, hit(r, ""))
	require.Equal(t, http.StatusTooManyRequests, hit(r, ""))

	m.FastForward(2 * time.Second)
	require.Equal(t, http.StatusOK, hit(r, ""))
}

func TestRedisRateLimitMiddleware_SubjectsAreIndependent(t *testing.T) {
	r, _ := redisLimited(t)
	require.Equal(t, http.StatusOK, hit(r, "alice"))
	require.Equal(t, http.StatusTooManyRequests, hit(r, "alice"))
	require.Equal(t, http.StatusOK, hit(r, "bob"))
}
