package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/tempshare/internal/auth"
	authbiz "github.com/lk2023060901/tempshare/internal/auth/biz"
	authdata "github.com/lk2023060901/tempshare/internal/auth/data"
	"github.com/lk2023060901/tempshare/internal/auth/middleware"
	authservice "github.com/lk2023060901/tempshare/internal/auth/service"
	"github.com/lk2023060901/tempshare/internal/conf"
	"github.com/lk2023060901/tempshare/internal/data"
	"github.com/lk2023060901/tempshare/internal/file/biz"
	filedata "github.com/lk2023060901/tempshare/internal/file/data"
	fileservice "github.com/lk2023060901/tempshare/internal/file/service"
	apperrors "github.com/lk2023060901/tempshare/internal/pkg/errors"
	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"github.com/lk2023060901/tempshare/internal/pkg/sse"
	"github.com/lk2023060901/tempshare/internal/pkg/workerpool"
	"github.com/lk2023060901/tempshare/internal/server"
	"go.uber.org/zap"
)

// app 进程内组装好的依赖
type app struct {
	config  *conf.Config
	log     *logger.Logger
	data    *data.Data
	cleanup func()

	pool    *workerpool.Pool
	files   *biz.FileUseCase
	admins  *authbiz.AdminUseCase
	sweeper *biz.Sweeper
}

// newApp 加载配置并初始化数据层。forceMigrate 忽略 database.automigrate=false。
func newApp(ctx context.Context, opts *rootOptions, forceMigrate bool) (*app, error) {
	config, err := conf.LoadConfig(opts.configFile, opts.envFile)
	if err != nil {
		return nil, err
	}
	if forceMigrate {
		config.Database.AutoMigrate = true
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(log)
	log.Info("config loaded",
		zap.String("config", opts.configFile),
		zap.Duration("expiry_window", config.Retention.ExpiryWindow))

	d, cleanup, err := data.NewData(ctx, config, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}

	a := &app{config: config, log: log, data: d, cleanup: cleanup}

	if err := d.Migrate(); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if config.Admin.SecretGenerated {
		log.Warn("admin.jwt_secret not set; using a random per-process secret, sessions end on restart and are not shared between replicas")
	}
	jwtManager := auth.NewJWTManager(config.Admin.JWTSecret, config.Admin.JWTIssuer, config.Admin.SessionTTL)
	a.admins = authbiz.NewAdminUseCase(authdata.NewAdminRepo(d.DB), jwtManager, log.Named("admin"))
	if err := a.admins.EnsureAdmin(ctx, config.Admin.Username, config.Admin.Password); err != nil {
		a.close()
		return nil, err
	}

	a.pool, err = workerpool.New(config.Sweeper.Concurrency, log.Named("workerpool").Logger)
	if err != nil {
		a.close()
		return nil, err
	}

	repo := filedata.NewFileRepo(d.DB)
	notifier := d.Notifier(config)

	a.files = biz.NewFileUseCase(repo, d.Blobs, d.Space, notifier, auth.NewAuthorizer(), nil, biz.Options{
		ExpiryWindow:   config.Retention.ExpiryWindow,
		MinFreeBytes:   config.Storage.MinFreeBytes,
		MaxUploadBytes: config.Storage.MaxUploadBytes,
	}, log.Named("file"))

	a.sweeper = biz.NewSweeper(repo, d.Blobs, notifier, nil, a.pool, d.SweeperLocker(config), biz.SweeperOptions{
		Interval:     config.Sweeper.Interval,
		ExpiryWindow: config.Retention.ExpiryWindow,
		BatchSize:    config.Sweeper.BatchSize,
	}, log)

	return a, nil
}

func (a *app) close() {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.pool != nil {
		a.pool.Shutdown()
	}
	if a.cleanup != nil {
		a.cleanup()
	}
	_ = a.log.Sync()
}

// limiter 启用 Redis 时多实例共享计数，否则按进程计数
func (a *app) limiter(limit int, window time.Duration) middleware.Limiter {
	if a.data.Redis != nil {
		return middleware.NewRedisLimiter(a.data.Redis, limit, window)
	}
	return middleware.NewMemoryLimiter(limit, window, a.config.RateLimit.LocalCapacity)
}

func (a *app) handlers() server.Handlers {
	cfg := a.config
	cookie := middleware.AdminAuthConfig{
		CookieName:   cfg.Admin.CookieName,
		CookieSecure: cfg.Admin.CookieSecure,
	}

	files := fileservice.NewFileService(a.files, a.data.Hub, sse.NewUpgrader(cfg.Server.CORSOrigins), fileservice.Options{
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Resource:       cfg.Notify.Resource,
		KeepAlive:      cfg.Notify.KeepAlive,
		ClientBuffer:   cfg.Notify.ClientBuffer,
	}, a.log.Named("http"))

	h := server.Handlers{
		Files: files,
		Auth: authservice.NewAuthService(a.admins, cookie, files.PageConfig(),
			int(cfg.Admin.SessionTTL.Seconds()), a.log.Named("http")),
		RequireAdmin: middleware.RequireAdmin(a.admins, cookie, a.log.Named("auth")),
	}

	if cfg.RateLimit.Enabled {
		h.UploadLimiter = middleware.RateLimiter(
			a.limiter(cfg.RateLimit.UploadLimit, cfg.RateLimit.UploadWindow),
			middleware.RateLimiterConfig{
				MaxRequests: cfg.RateLimit.UploadLimit,
				Window:      cfg.RateLimit.UploadWindow,
				Route:       "upload",
				RedirectTo:  "/",
			}, a.log.Named("ratelimit"))
		h.LoginLimiter = middleware.RateLimiter(
			a.limiter(cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginWindow),
			middleware.RateLimiterConfig{
				MaxRequests: cfg.RateLimit.LoginLimit,
				Window:      cfg.RateLimit.LoginWindow,
				Route:       "login",
				RedirectTo:  middleware.LoginPath,
				ErrorCode:   apperrors.ErrRateLimited,
			}, a.log.Named("ratelimit"))

		if n := cfg.RateLimit.DefaultLimit; n > 0 {
			h.DefaultLimiters = append(h.DefaultLimiters, middleware.RateLimiter(
				a.limiter(n, cfg.RateLimit.DefaultWindow),
				middleware.RateLimiterConfig{
					MaxRequests: n,
					Window:      cfg.RateLimit.DefaultWindow,
					Route:       "default",
					ErrorCode:   apperrors.ErrRateLimited,
					Reject:      files.RenderFailure,
				}, a.log.Named("ratelimit")))
		}
		if n := cfg.RateLimit.DailyLimit; n > 0 {
			h.DefaultLimiters = append(h.DefaultLimiters, middleware.RateLimiter(
				a.limiter(n, 24*time.Hour),
				middleware.RateLimiterConfig{
					MaxRequests: n,
					Window:      24 * time.Hour,
					Route:       "daily",
					ErrorCode:   apperrors.ErrRateLimited,
					Reject:      files.RenderFailure,
				}, a.log.Named("ratelimit")))
		}
	}
	return h
}

// runServe 启动 HTTP、gRPC 健康检查与清理任务，ctx 结束后优雅退出
func runServe(ctx context.Context, opts *rootOptions) error {
	a, err := newApp(ctx, opts, false)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.config

	router, err := server.NewRouter(&cfg.Server, a.handlers(), a.log.Named("http"))
	if err != nil {
		return err
	}
	httpServer := server.NewHTTPServer(&cfg.Server, router, a.log)

	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	if bridge := a.data.EventBridge(cfg, a.log.Named("events")); bridge != nil {
		go func() {
			if err := bridge.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("event bridge stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Sweeper.Enabled {
		if err := a.sweeper.Start(bgCtx); err != nil {
			return err
		}
	} else {
		a.log.Warn("expiry sweeper disabled; expired files stay on disk until `tempshare sweep` runs")
	}

	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcServer *server.GRPCServer
	if cfg.Server.GRPCPort > 0 {
		grpcServer = server.NewGRPCServer(cfg.Server.GRPCAddr(), a.files.Health, 10*time.Second, a.log.Named("grpc"))
		go func() {
			if err := grpcServer.Start(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	a.log.Info("servers started")

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutting down servers...")
	case runErr = <-errCh:
		a.log.Error("server failed, shutting down", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Stop()
	}
	if err := httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	a.sweeper.Stop()
	cancelBg()

	a.log.Info("servers exited")
	return runErr
}
