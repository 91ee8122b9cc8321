package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ==================== Pub/Sub ====================

// Publish 发布消息
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) (int64, error) {
	n, err := c.rdb.Publish(ctx, channel, message).Result()
	if err != nil {
		c.logger.Error("redis publish failed", zap.String("channel", channel), zap.Error(err))
		return 0, err
	}
	c.logger.Debug("redis message published", zap.String("channel", channel), zap.Int64("receivers", n))
	return n, nil
}

// Subscribe 订阅频道
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	pubsub := c.rdb.Subscribe(ctx, channels...)
	c.logger.Info("redis subscribed to channels", zap.Strings("channels", channels))
	return pubsub
}

// ==================== Lua ====================

// Eval 执行 Lua 脚本
func (c *Client) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	result, err := c.rdb.Eval(ctx, script, keys, args...).Result()
	if err != nil {
		c.logger.Error("redis eval failed", zap.Strings("keys", keys), zap.Error(err))
	}
	return result, err
}

// ==================== Distributed Lock ====================

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Lock 获取分布式锁，返回用于释放的 token。锁被占用时返回 ErrLockNotAcquired。
func (c *Client) Lock(ctx context.Context, key string, expiration time.Duration) (string, error) {
	token := uuid.NewString()

	ok, err := c.rdb.SetNX(ctx, key, token, expiration).Result()
	if err != nil {
		c.logger.Error("redis lock failed", zap.String("key", key), zap.Error(err))
		return "", err
	}
	if !ok {
		return "", ErrLockNotAcquired
	}

	c.logger.Debug("redis lock acquired", zap.String("key", key), zap.Duration("expiration", expiration))
	return token, nil
}

// Unlock 释放分布式锁（Lua 脚本保证只释放自己持有的锁）
func (c *Client) Unlock(ctx context.Context, key, token string) error {
	result, err := c.rdb.Eval(ctx, unlockScript, []string{key}, token).Int64()
	if err != nil {
		c.logger.Error("redis unlock failed", zap.String("key", key), zap.Error(err))
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// IsLockNotAcquired 判断是否因锁被占用而失败
func IsLockNotAcquired(err error) bool {
	return errors.Is(err, ErrLockNotAcquired)
}
