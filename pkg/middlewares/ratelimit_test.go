package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logger "github.com/parleychat/parley/middleware/log"
	"github.com/parleychat/parley/pkg/ratelimit"
)

func setupLimitedRouter(t *testing.T, limit int, userID uint) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log, err := logger.NewDevelopmentLogger()
	require.NoError(t, err)

	limiter := ratelimit.NewLimiter(client, log, false)

	r := gin.New()
	r.POST("/send",
		func(c *gin.Context) {
			if userID != 0 {
				c.Set("user_id", userID)
			}
		},
		SendRateLimit(limiter, limit, time.Minute),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)
	return r
}

func TestSendRateLimit(t *testing.T) {
	r := setupLimitedRouter(t, 3, 42)

	for i := range 3 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send", nil))
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestSendRateLimit_SkipsAnonymousRequests(t *testing.T) {
	// 无 user_id 的请求不计数（认证中间件在前，正常不会出现）
	r := setupLimitedRouter(t, 1, 0)

	for range 5 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/send", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
