package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// 预定义错误
var (
	ErrNil             = redis.Nil
	ErrLockNotAcquired = errors.New("redis: lock is held by another owner")
	ErrLockNotHeld     = errors.New("redis: lock expired or token mismatch")
)

// IsNil 判断是否是 Key 不存在错误
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
