package auth

import (
	"context"
	"errors"
)

type adminKey struct{}

// ErrNoAdmin ctx 中没有已认证的管理员
var ErrNoAdmin = errors.New("no authenticated admin in context")

// WithAdmin 记录已认证的管理员用户名
func WithAdmin(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, adminKey{}, username)
}

// AdminFrom 取出已认证的管理员用户名
func AdminFrom(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	name, ok := ctx.Value(adminKey{}).(string)
	return name, ok && name != ""
}

// Authorizer 以 ctx 中的管理员身份作为管理操作的权限凭据。
// 身份由 HTTP 中间件在认证通过后写入。
type Authorizer struct{}

func NewAuthorizer() Authorizer {
	return Authorizer{}
}

func (Authorizer) AuthorizeAdmin(ctx context.Context) error {
	if _, ok := AdminFrom(ctx); !ok {
		return ErrNoAdmin
	}
	return nil
}
