package redis

import (
	"errors"
	"time"
)

// DeployMode Redis 部署模式
type DeployMode string

const (
	ModeSingle   DeployMode = "single"   // 单机模式
	ModeSentinel DeployMode = "sentinel" // 哨兵模式
	ModeCluster  DeployMode = "cluster"  // 集群模式
)

// Config Redis 配置
type Config struct {
	Enabled bool       `mapstructure:"enabled"`
	Mode    DeployMode `mapstructure:"mode"`

	// single: 取第一个地址；sentinel: 哨兵地址；cluster: 集群节点
	Addrs      []string `mapstructure:"addrs"`
	MasterName string   `mapstructure:"master_name"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`

	// KeyPrefix 所有业务 key 的前缀，多个部署共用同一 Redis 时区分命名空间
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DefaultConfig 默认配置（未启用）
func DefaultConfig() *Config {
	return &Config{
		Enabled:      false,
		Mode:         ModeSingle,
		Addrs:        []string{"localhost:6379"},
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
		KeyPrefix:    "tempshare:",
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if len(c.Addrs) == 0 {
		return errors.New("redis: at least one address is required")
	}
	switch c.Mode {
	case ModeSingle, ModeCluster:
	case ModeSentinel:
		if c.MasterName == "" {
			return errors.New("redis: master_name is required in sentinel mode")
		}
	default:
		return errors.New("redis: mode must be one of single, sentinel, cluster")
	}
	if c.DB < 0 || c.DB > 15 {
		return errors.New("redis: db must be between 0 and 15")
	}
	if c.Mode == ModeCluster && c.DB != 0 {
		return errors.New("redis: cluster mode only supports db 0")
	}
	if c.PoolSize < 0 || c.MinIdleConns < 0 {
		return errors.New("redis: pool sizes must be >= 0")
	}
	return nil
}

// Key 为业务 key 加上配置的前缀
func (c *Config) Key(parts ...string) string {
	key := c.KeyPrefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}
