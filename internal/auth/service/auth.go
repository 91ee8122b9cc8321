package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/tempshare/internal/auth/biz"
	"github.com/lk2023060901/tempshare/internal/auth/middleware"
	apperrors "github.com/lk2023060901/tempshare/internal/pkg/errors"
	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"github.com/lk2023060901/tempshare/internal/pkg/response"
	"github.com/lk2023060901/tempshare/internal/web"
	"go.uber.org/zap"
)

// AdminAuth 登录相关的业务接口
type AdminAuth interface {
	Login(ctx context.Context, username, password string) (*biz.Session, error)
	VerifySession(ctx context.Context, token string) (string, error)
}

// AuthService 管理员登录、登出
type AuthService struct {
	uc     AdminAuth
	cookie middleware.AdminAuthConfig
	page   web.PageConfig
	ttl    int
	logger *logger.Logger
}

// NewAuthService 创建认证服务，sessionTTLSeconds 用作 cookie 的 Max-Age
func NewAuthService(uc AdminAuth, cookie middleware.AdminAuthConfig, page web.PageConfig, sessionTTLSeconds int, log *logger.Logger) *AuthService {
	if log == nil {
		log = logger.NewNop()
	}
	return &AuthService{
		uc:     uc,
		cookie: cookie,
		page:   page,
		ttl:    sessionTTLSeconds,
		logger: log,
	}
}

// LoginRequest 登录表单
type LoginRequest struct {
	Username string `form:"username" json:"username" binding:"required,min=4,max=20"`
	Password string `form:"password" json:"password" binding:"required,min=6,max=100"`
	Next     string `form:"next" json:"next"`
}

// LoginResponse API 登录响应
type LoginResponse struct {
	Username  string `json:"username"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// LoginPage 登录页；已登录时直接进入管理面板
func (s *AuthService) LoginPage(c *gin.Context) {
	if token, err := c.Cookie(s.cookie.CookieName); err == nil && token != "" {
		if _, err := s.uc.VerifySession(c.Request.Context(), token); err == nil {
			c.Redirect(http.StatusSeeOther, safeNext(c.Query("next")))
			return
		}
	}

	page := web.NewPage(c, s.page, "Admin Login")
	page.Next = safeNext(c.Query("next"))
	c.HTML(http.StatusOK, "admin_login.html", page)
}

// Login 校验表单并写入会话 cookie
func (s *AuthService) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Fail(c, middleware.LoginPath, apperrors.Wrap(err, apperrors.ErrInvalidParams))
		return
	}

	session, err := s.uc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, biz.ErrInvalidCredentials) {
			response.Fail(c, loginRetry(req.Next), apperrors.Wrap(err, apperrors.ErrAuthInvalidCredentials))
			return
		}
		s.logger.WithContext(c.Request.Context()).Error("admin login failed", zap.Error(err))
		response.Fail(c, middleware.LoginPath, apperrors.Wrap(err, apperrors.ErrInternalServer))
		return
	}

	middleware.SetSessionCookie(c, s.cookie, session.Token, s.ttl)

	if response.WantsJSON(c) {
		response.SuccessWithMessage(c, "Logged in successfully.", LoginResponse{
			Username:  session.Username,
			Token:     session.Token,
			ExpiresAt: session.ExpiresAt.Unix(),
		})
		return
	}
	response.RedirectWithFlash(c, safeNext(req.Next), response.CategorySuccess, "Logged in successfully.")
}

// Logout 清除会话 cookie
func (s *AuthService) Logout(c *gin.Context) {
	middleware.ClearSessionCookie(c, s.cookie)
	response.Reply(c, "/", "Logged out.", nil)
}

// RegisterRoutes 注册登录路由，api 为 /api 分组。loginLimiter 为 nil 时不限流。
func (s *AuthService) RegisterRoutes(r gin.IRoutes, api gin.IRoutes, loginLimiter gin.HandlerFunc) {
	login := []gin.HandlerFunc{s.Login}
	if loginLimiter != nil {
		login = []gin.HandlerFunc{loginLimiter, s.Login}
	}

	r.GET(middleware.LoginPath, s.LoginPage)
	r.POST(middleware.LoginPath, login...)
	r.POST("/admin/logout", s.Logout)
	api.POST("/admin/login", login...)
}

// safeNext 只允许站内的 /admin 路径，避免开放重定向
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/admin") || strings.HasPrefix(next, middleware.LoginPath) {
		return "/admin"
	}
	if strings.ContainsAny(next, "\\\r\n") {
		return "/admin"
	}
	return next
}

func loginRetry(next string) string {
	if n := safeNext(next); n != "/admin" {
		return middleware.LoginPath + "?next=" + url.QueryEscape(n)
	}
	return middleware.LoginPath
}
