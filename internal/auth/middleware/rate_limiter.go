package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	apperrors "github.com/lk2023060901/tempshare/internal/pkg/errors"
	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"github.com/lk2023060901/tempshare/internal/pkg/metrics"
	"github.com/lk2023060901/tempshare/internal/pkg/redis"
	"github.com/lk2023060901/tempshare/internal/pkg/response"
	"github.com/lk2023060901/tempshare/internal/pkg/validator"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitResult 一次限流判定的结果
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter 按 key 计数的限流器
type Limiter interface {
	Allow(ctx context.Context, key string) (RateLimitResult, error)
}

// RateLimiterConfig 限流配置
type RateLimiterConfig struct {
	// 时间窗口内允许的最大请求数
	MaxRequests int
	// 时间窗口
	Window time.Duration
	// 用于区分不同端点的 key 前缀，同时作为指标的 route 标签
	Route string
	// 被拒绝时浏览器重定向的位置
	RedirectTo string
	// 拒绝时返回的错误码，默认 ErrTooManyRequests
	ErrorCode int
	// Reject 非空时替代重定向，自行输出拒绝响应
	Reject func(c *gin.Context, err error)
}

func (cfg *RateLimiterConfig) normalize() {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Route == "" {
		cfg.Route = "default"
	}
	if cfg.RedirectTo == "" {
		cfg.RedirectTo = "/"
	}
	if cfg.ErrorCode == 0 {
		cfg.ErrorCode = apperrors.ErrTooManyRequests
	}
}

// RateLimiter 按客户端 IP 限流的中间件。限流器故障时放行请求。
func RateLimiter(limiter Limiter, cfg RateLimiterConfig, log *logger.Logger) gin.HandlerFunc {
	cfg.normalize()
	if log == nil {
		log = logger.NewNop()
	}

	return func(c *gin.Context) {
		key := buildRateLimitKey(c, cfg.Route)

		ctx := c.Request.Context()
		res, err := limiter.Allow(ctx, key)
		if err != nil {
			log.WithContext(ctx).Error("rate limiter error", zap.Error(err), zap.String("key", key))
			// 限流器故障时，降级允许请求通过
			c.Next()
			return
		}

		// 设置响应头
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			retryAfter := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			metrics.RateLimitedTotal.WithLabelValues(cfg.Route).Inc()
			log.WithContext(ctx).Warn("rate limit exceeded",
				zap.String("route", cfg.Route),
				zap.String("ip", c.ClientIP()))
			rejectErr := apperrors.New(cfg.ErrorCode)
			if cfg.Reject != nil {
				cfg.Reject(c, rejectErr)
				c.Abort()
				return
			}
			response.Fail(c, cfg.RedirectTo, rejectErr)
			return
		}

		c.Next()
	}
}

// buildRateLimitKey 构建限流 key
func buildRateLimitKey(c *gin.Context, route string) string {
	return fmt.Sprintf("rate_limit:%s:ip:%s", route, validator.ClientKey(c.ClientIP()))
}

// ==================== Redis ====================

// 滑动窗口：ZSET 以毫秒时间戳为 score，成员唯一，同一毫秒内的请求不会互相覆盖
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

-- 删除窗口外的记录
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)

local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window)
	return {1, limit - current - 1, now + window}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')[2]
return {0, 0, tonumber(oldest) + window}
`

// RedisLimiter 多实例共享计数的滑动窗口限流器
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (RateLimitResult, error) {
	now := l.now().UnixMilli()
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	result, err := l.client.Eval(ctx, slidingWindowScript, []string{l.client.Key(key)},
		now, l.window.Milliseconds(), l.limit, member)
	if err != nil {
		return RateLimitResult{}, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return RateLimitResult{}, fmt.Errorf("invalid rate limit result: %v", result)
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	resetMs, _ := values[2].(int64)

	return RateLimitResult{
		Allowed:   allowed == 1,
		Limit:     l.limit,
		Remaining: int(remaining),
		ResetAt:   time.UnixMilli(resetMs),
	}, nil
}

// ==================== Memory ====================

// MemoryLimiter 单实例令牌桶限流器。每个 key 一个 rate.Limiter，
// 空闲满一个窗口的桶已经回满，可以直接淘汰。
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
	limit   int
	every   rate.Limit
	now     func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration, capacity int) *MemoryLimiter {
	if capacity <= 0 {
		capacity = 10000
	}
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		buckets: expirable.NewLRU[string, *rate.Limiter](capacity, nil, window),
		limit:   limit,
		every:   rate.Every(window / time.Duration(limit)),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (RateLimitResult, error) {
	now := l.now()

	l.mu.Lock()
	bucket, ok := l.buckets.Get(key)
	if !ok {
		bucket = rate.NewLimiter(l.every, l.limit)
	}
	// 每次访问都刷新过期时间，淘汰只发生在空闲满一个窗口之后
	l.buckets.Add(key, bucket)
	l.mu.Unlock()

	allowed := bucket.AllowN(now, 1)
	tokens := bucket.TokensAt(now)

	remaining := int(math.Floor(tokens))
	if remaining < 0 {
		remaining = 0
	}

	// 下一个令牌可用的时间
	resetAt := now
	if tokens < 1 {
		wait := time.Duration((1 - tokens) / float64(l.every) * float64(time.Second))
		resetAt = now.Add(wait)
	}

	return RateLimitResult{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
