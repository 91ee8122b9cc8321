package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/tempshare/internal/pkg/errors"
	"github.com/lk2023060901/tempshare/internal/pkg/redis/redistest"
	"github.com/lk2023060901/tempshare/internal/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(5, time.Minute, 100)
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		res, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 4-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.True(t, res.ResetAt.After(now))

	// 其他客户端不受影响
	res, err = l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// 一个令牌的补充间隔为 window / limit
	now = now.Add(13 * time.Second)
	res, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryLimiterConcurrent(t *testing.T) {
	l := NewMemoryLimiter(5, time.Minute, 100)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(context.Background(), "same-client")
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, allowed)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (RateLimitResult, error) {
	return RateLimitResult{}, errors.New("redis down")
}

func TestRateLimiterMiddleware(t *testing.T) {
	newRouter := func(l Limiter) *gin.Engine {
		r := gin.New()
		r.POST("/upload",
			RateLimiter(l, RateLimiterConfig{MaxRequests: 2, Window: time.Minute, Route: "upload"}, nil),
			func(c *gin.Context) { c.Status(http.StatusCreated) })
		return r
	}
	post := func(r *gin.Engine, accept string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("browser is redirected with flash", func(t *testing.T) {
		r := newRouter(NewMemoryLimiter(2, time.Minute, 10))
		assert.Equal(t, http.StatusCreated, post(r, "").Code)
		w := post(r, "")
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

		w = post(r, "")
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
	})

	t.Run("api client gets 429", func(t *testing.T) {
		r := newRouter(NewMemoryLimiter(2, time.Minute, 10))
		post(r, "application/json")
		post(r, "application/json")

		w := post(r, "application/json")
		require.Equal(t, http.StatusTooManyRequests, w.Code)
		var body response.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, apperrors.ErrTooManyRequests, body.Code)
		assert.Equal(t, "Too many uploads. Please try again in a minute.", body.Message)
	})

	t.Run("limiter failure lets requests through", func(t *testing.T) {
		r := newRouter(failingLimiter{})
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusCreated, post(r, "").Code)
		}
	})
}

func TestRedisLimiter(t *testing.T) {
	client := redistest.New(t)
	ctx := context.Background()
	l := NewRedisLimiter(client, 3, time.Minute)

	// 同一毫秒内的请求各自计数
	fixed := time.Now()
	l.now = func() time.Time { return fixed }
	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "rate_limit:upload:ip:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "rate_limit:upload:ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, fixed.Add(time.Minute).UnixMilli(), res.ResetAt.UnixMilli())

	// 窗口滑过后恢复
	l.now = func() time.Time { return fixed.Add(time.Minute + time.Millisecond) }
	res, err = l.Allow(ctx, "rate_limit:upload:ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
