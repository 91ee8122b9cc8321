package data

import (
	"context"
	"fmt"

	authdata "github.com/lk2023060901/tempshare/internal/auth/data"
	"github.com/lk2023060901/tempshare/internal/conf"
	"github.com/lk2023060901/tempshare/internal/file/biz"
	filedata "github.com/lk2023060901/tempshare/internal/file/data"
	"github.com/lk2023060901/tempshare/internal/pkg/database"
	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"github.com/lk2023060901/tempshare/internal/pkg/minio"
	"github.com/lk2023060901/tempshare/internal/pkg/redis"
	"github.com/lk2023060901/tempshare/internal/pkg/sse"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Data 进程内共享的基础设施
type Data struct {
	DB    *database.DB
	Redis *redis.Client // redis.enabled=false 时为 nil
	MinIO *minio.Client // storage.backend=minio 时才创建
	Hub   *sse.Hub

	Blobs biz.BlobStore
	Space biz.SpaceChecker // 对象存储没有剩余空间的概念，为 nil
}

// NewData 按配置初始化数据库、Redis、文件存储与通知 Hub
func NewData(ctx context.Context, config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	var closers []func()
	cleanup := func() {
		log.Info("cleaning up data resources")
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Data, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// Initialize database
	db, err := database.New(&config.Database, log.Named("database"))
	if err != nil {
		return fail(fmt.Errorf("failed to init database: %w", err))
	}
	closers = append(closers, func() { _ = db.Close() })

	d := &Data{DB: db, Hub: sse.NewHub()}
	closers = append(closers, d.Hub.Close)

	// Initialize Redis
	if config.Redis.Enabled {
		rdb, err := redis.New(&config.Redis, log.Named("redis"))
		if err != nil {
			return fail(fmt.Errorf("failed to connect to redis: %w", err))
		}
		d.Redis = rdb
		closers = append(closers, func() { _ = rdb.Close() })
	}

	// Initialize blob storage
	switch config.Storage.Backend {
	case conf.StorageMinIO:
		client, err := minio.NewClient(ctx, &config.MinIO, log.Named("minio").Logger)
		if err != nil {
			return fail(fmt.Errorf("failed to init minio: %w", err))
		}
		d.MinIO = client
		d.Blobs = filedata.NewMinIOBlobStore(client)
	default:
		local, err := filedata.NewLocalBlobStore(afero.NewOsFs(), config.Storage.LocalDir)
		if err != nil {
			return fail(fmt.Errorf("failed to init local storage: %w", err))
		}
		d.Blobs = local
		d.Space = local
	}

	log.Info("data layer initialized",
		zap.String("database", config.Database.Driver),
		zap.Bool("redis", d.Redis != nil),
		zap.String("storage", config.Storage.Backend))
	return d, cleanup, nil
}

// Migrate 迁移全部表
func (d *Data) Migrate() error {
	if err := filedata.AutoMigrate(d.DB); err != nil {
		return err
	}
	return authdata.AutoMigrate(d.DB)
}

// Notifier 启用 Redis 时跨实例广播，否则只通知本进程的订阅者
func (d *Data) Notifier(config *conf.Config) biz.Notifier {
	if d.Redis != nil {
		return filedata.NewRedisNotifier(d.Redis, config.Notify.RedisChannel)
	}
	return filedata.NewHubNotifier(d.Hub, config.Notify.Resource)
}

// EventBridge 启用 Redis 时把频道消息转发给本地订阅者，否则返回 nil
func (d *Data) EventBridge(config *conf.Config, log *logger.Logger) *filedata.EventBridge {
	if d.Redis == nil {
		return nil
	}
	return filedata.NewEventBridge(d.Redis, config.Notify.RedisChannel, d.Hub, config.Notify.Resource, log)
}

// SweeperLocker 启用 Redis 时返回分布式锁，否则返回 nil（单实例无需加锁）
func (d *Data) SweeperLocker(config *conf.Config) biz.Locker {
	if d.Redis == nil || config.Sweeper.LockKey == "" {
		return nil
	}
	return filedata.NewRedisLocker(d.Redis, config.Sweeper.LockKey, config.Sweeper.LockTTL)
}
