package data

import (
	"context"
	"time"

	"github.com/lk2023060901/tempshare/internal/file/biz"
	pkgredis "github.com/lk2023060901/tempshare/internal/pkg/redis"
)

// RedisLocker 多实例部署时的清理互斥锁。TTL 应小于清理间隔，
// 持有者崩溃后锁在下一轮之前过期。
type RedisLocker struct {
	client *pkgredis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLocker(client *pkgredis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: client.Key("lock", key), ttl: ttl}
}

var _ biz.Locker = (*RedisLocker)(nil)

func (l *RedisLocker) TryLock(ctx context.Context) (func(), bool, error) {
	token, err := l.client.Lock(ctx, l.key, l.ttl)
	if pkgredis.IsLockNotAcquired(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	unlock := func() {
		// 锁已过期被他人持有时 Unlock 返回 ErrLockNotHeld，忽略即可
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.client.Unlock(ctx, l.key, token)
	}
	return unlock, true, nil
}
