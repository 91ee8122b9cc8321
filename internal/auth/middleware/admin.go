package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/tempshare/internal/auth"
	"github.com/lk2023060901/tempshare/internal/auth/biz"
	apperrors "github.com/lk2023060901/tempshare/internal/pkg/errors"
	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"github.com/lk2023060901/tempshare/internal/pkg/response"
	"go.uber.org/zap"
)

const (
	// AdminKey gin 上下文中管理员用户名的 key
	AdminKey = "admin"

	LoginPath  = "/admin/login"
	basicRealm = `Basic realm="tempshare admin", charset="UTF-8"`
)

// SessionVerifier 校验管理员凭据
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (string, error)
	Authenticate(ctx context.Context, username, password string) (*biz.Admin, error)
}

// AdminAuthConfig 管理员认证中间件配置
type AdminAuthConfig struct {
	CookieName   string
	CookieSecure bool
}

// RequireAdmin 管理员认证中间件。依次尝试会话 cookie、Bearer token、Basic 认证。
// 认证失败时浏览器重定向到登录页，API 与 Basic 调用方收到 401。
func RequireAdmin(verifier SessionVerifier, cfg AdminAuthConfig, log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.NewNop()
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		username, attempted, err := authenticate(c, verifier, cfg)
		if err == nil && username != "" {
			ctx = auth.WithAdmin(ctx, username)
			ctx = logger.WithPrincipal(ctx, username)
			c.Request = c.Request.WithContext(ctx)
			c.Set(AdminKey, username)
			c.Next()
			return
		}

		if err != nil {
			log.WithContext(ctx).Warn("admin authentication failed",
				zap.String("method", attempted),
				zap.String("ip", c.ClientIP()),
				zap.Error(err))
		}

		if attempted == "cookie" {
			ClearSessionCookie(c, cfg)
		}

		if attempted == "basic" || attempted == "bearer" || response.WantsJSON(c) {
			c.Header("WWW-Authenticate", basicRealm)
			response.HandleError(c, apperrors.New(apperrors.ErrAuthLoginRequired))
			return
		}

		response.RedirectWithFlash(c, loginLocation(c.Request), response.CategoryInfo,
			apperrors.GetMessage(apperrors.ErrAuthLoginRequired))
		c.Abort()
	}
}

// authenticate 返回用户名与尝试过的认证方式（cookie | bearer | basic，未携带凭据时为空）
func authenticate(c *gin.Context, verifier SessionVerifier, cfg AdminAuthConfig) (string, string, error) {
	ctx := c.Request.Context()

	if token, err := c.Cookie(cfg.CookieName); err == nil && token != "" {
		name, err := verifier.VerifySession(ctx, token)
		return name, "cookie", err
	}

	header := c.GetHeader("Authorization")
	switch {
	case header == "":
		return "", "", nil
	case strings.HasPrefix(strings.ToLower(header), "bearer "):
		token, err := auth.ExtractTokenFromHeader(header)
		if err != nil {
			return "", "bearer", err
		}
		name, err := verifier.VerifySession(ctx, token)
		return name, "bearer", err
	default:
		user, pass, ok := c.Request.BasicAuth()
		if !ok {
			return "", "basic", biz.ErrInvalidCredentials
		}
		admin, err := verifier.Authenticate(ctx, user, pass)
		if err != nil {
			return "", "basic", err
		}
		return admin.Username, "basic", nil
	}
}

// loginLocation 登录页地址，携带原始路径以便登录后跳回
func loginLocation(r *http.Request) string {
	if r.Method != http.MethodGet || r.URL.Path == LoginPath {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
}

// SetSessionCookie 写入管理员会话 cookie
func SetSessionCookie(c *gin.Context, cfg AdminAuthConfig, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.CookieName, token, maxAge, "/", "", cfg.CookieSecure, true)
}

// ClearSessionCookie 删除管理员会话 cookie
func ClearSessionCookie(c *gin.Context, cfg AdminAuthConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.CookieName, "", -1, "/", "", cfg.CookieSecure, true)
}

// GetAdmin 从 gin 上下文获取管理员用户名
func GetAdmin(c *gin.Context) (string, bool) {
	name, ok := c.Get(AdminKey)
	if !ok {
		return "", false
	}
	s, ok := name.(string)
	return s, ok
}
