package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	authservice "github.com/lk2023060901/tempshare/internal/auth/service"
	"github.com/lk2023060901/tempshare/internal/conf"
	fileservice "github.com/lk2023060901/tempshare/internal/file/service"
	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"github.com/lk2023060901/tempshare/internal/pkg/metrics"
	"github.com/lk2023060901/tempshare/internal/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers 路由依赖。各限流中间件为 nil 时不限流。
type Handlers struct {
	Files         *fileservice.FileService
	Auth          *authservice.AuthService
	RequireAdmin  gin.HandlerFunc
	UploadLimiter gin.HandlerFunc
	LoginLimiter  gin.HandlerFunc
	// DefaultLimiters 按顺序作用于公开页面、下载与上传
	DefaultLimiters []gin.HandlerFunc
}

// NewRouter 组装全部 HTTP 路由
func NewRouter(config *conf.ServerConfig, h Handlers, log *logger.Logger) (*gin.Engine, error) {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(config.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log, logger.MiddlewareOptions{
		SkipPaths:        []string{"/health", "/metrics"},
		SkipPathPrefixes: []string{"/static/", "/events", "/ws"},
	}))
	router.Use(metrics.GinMiddleware())

	page := h.Files.PageConfig()
	router.NoRoute(func(c *gin.Context) {
		web.RenderError(c, page, http.StatusNotFound, "Page not found")
	})

	router.StaticFS("/static", web.StaticFS())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 只有 /api 需要跨域，页面与表单都是同源
	api := router.Group("/api")
	if len(config.CORSOrigins) > 0 {
		api.Use(cors.New(corsConfig(config.CORSOrigins)))
	}

	h.Files.RegisterRoutes(router, api, fileservice.RouteLimits{
		Default: h.DefaultLimiters,
		Upload:  h.UploadLimiter,
	})
	h.Auth.RegisterRoutes(router, api, h.LoginLimiter)

	admin := router.Group("/admin", h.RequireAdmin)
	adminAPI := api.Group("/admin", h.RequireAdmin)
	h.Files.RegisterAdminRoutes(admin, adminAPI)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", logger.RequestIDHeader}
	cfg.ExposeHeaders = []string{"Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", logger.RequestIDHeader}
	cfg.MaxAge = 12 * time.Hour
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// HTTPServer HTTP 服务
type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

func NewHTTPServer(config *conf.ServerConfig, handler http.Handler, log *logger.Logger) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              config.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			// 上传与推送路由会自行解除读超时
			ReadTimeout: config.ReadTimeout,
		},
		logger: log,
	}
}

// Start 阻塞直到服务关闭
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}
