package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client Redis 客户端封装
type Client struct {
	config *Config
	logger *logger.Logger
	rdb    redis.UniversalClient
}

// New 创建 Redis 客户端并做一次健康检查
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &redis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
	}

	var rdb redis.UniversalClient
	switch cfg.Mode {
	case ModeSentinel:
		opts.MasterName = cfg.MasterName
		rdb = redis.NewFailoverClient(opts.Failover())
	case ModeCluster:
		rdb = redis.NewClusterClient(opts.Cluster())
	default:
		o := opts.Simple()
		o.Addr = cfg.Addrs[0]
		rdb = redis.NewClient(o)
	}

	client := &Client{config: cfg, logger: log, rdb: rdb}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info("redis client initialized",
		zap.String("mode", string(cfg.Mode)),
		zap.Strings("addrs", cfg.Addrs),
	)
	return client, nil
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭连接
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key 返回带命名空间前缀的 key
func (c *Client) Key(parts ...string) string {
	return c.config.Key(parts...)
}

// Raw 返回底层客户端，供需要完整命令集的调用方使用
func (c *Client) Raw() redis.UniversalClient {
	return c.rdb
}
