package biz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	apperrors "github.com/lk2023060901/tempshare/internal/pkg/errors"
	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"github.com/lk2023060901/tempshare/internal/pkg/metrics"
	"github.com/lk2023060901/tempshare/internal/pkg/validator"
	"go.uber.org/zap"
)

// sniffLen 与 mimetype 默认读取上限一致
const sniffLen = 3072

// Options 文件生命周期参数
type Options struct {
	ExpiryWindow   time.Duration
	MinFreeBytes   uint64
	MaxUploadBytes int64 // <= 0 不限制
}

// UploadInput 单个上传文件
type UploadInput struct {
	Filename string
	Content  io.Reader
	Size     int64 // 客户端声明的大小，未知时为 -1
}

// FileUseCase 文件上传、下载与管理
type FileUseCase struct {
	repo     FileRepo
	blobs    BlobStore
	space    SpaceChecker // nil 时跳过剩余空间检查（对象存储）
	notifier Notifier
	authz    Authorizer
	clock    Clock
	opts     Options
	logger   *logger.Logger
}

func NewFileUseCase(
	repo FileRepo,
	blobs BlobStore,
	space SpaceChecker,
	notifier Notifier,
	authz Authorizer,
	clock Clock,
	opts Options,
	log *logger.Logger,
) *FileUseCase {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &FileUseCase{
		repo:     repo,
		blobs:    blobs,
		space:    space,
		notifier: notifier,
		authz:    authz,
		clock:    clock,
		opts:     opts,
		logger:   log,
	}
}

// ExpiryWindow 过期窗口
func (uc *FileUseCase) ExpiryWindow() time.Duration {
	return uc.opts.ExpiryWindow
}

// Upload 保存文件：先写存储，再写索引，最后通知
func (uc *FileUseCase) Upload(ctx context.Context, in UploadInput) (*File, error) {
	log := uc.logger.WithContext(ctx).Logger

	if in.Content == nil || in.Filename == "" {
		metrics.UploadsTotal.WithLabelValues("invalid").Inc()
		return nil, apperrors.New(apperrors.ErrFileMissing)
	}

	name := validator.SanitizeFilename(in.Filename)
	if name == "" {
		metrics.UploadsTotal.WithLabelValues("invalid").Inc()
		log.Warn("rejected upload with unusable filename", zap.String("filename", in.Filename))
		return nil, apperrors.New(apperrors.ErrFileNameInvalid)
	}

	if uc.opts.MaxUploadBytes > 0 && in.Size > uc.opts.MaxUploadBytes {
		metrics.UploadsTotal.WithLabelValues("invalid").Inc()
		return nil, apperrors.New(apperrors.ErrFileTooLarge,
			fmt.Sprintf("Maximum size is %s.", humanize.IBytes(uint64(uc.opts.MaxUploadBytes))))
	}

	if err := uc.checkCapacity(ctx); err != nil {
		metrics.UploadsTotal.WithLabelValues("capacity").Inc()
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		metrics.UploadsTotal.WithLabelValues("storage_error").Inc()
		return nil, apperrors.Wrap(err, apperrors.ErrStorageWrite)
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()
	content := io.MultiReader(bytes.NewReader(head), in.Content)

	id := uuid.NewString()
	written, err := uc.blobs.Put(ctx, id, content, in.Size, contentType)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("storage_error").Inc()
		log.Error("failed to store upload",
			zap.String("file_id", id), zap.String("filename", name), zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrStorageWrite)
	}

	file := &File{
		ID:           id,
		OriginalName: name,
		UploadedAt:   uc.clock.Now().UTC().Truncate(time.Microsecond),
		Size:         written,
		ContentType:  contentType,
	}
	if err := uc.repo.Create(ctx, file); err != nil {
		metrics.UploadsTotal.WithLabelValues("index_error").Inc()
		// 索引写入失败，尽力删除刚写入的内容，失败则留下孤儿文件
		if rmErr := uc.blobs.Remove(ctx, id); rmErr != nil {
			log.Error("orphaned blob after index failure",
				zap.String("file_id", id), zap.Error(rmErr))
		}
		log.Error("failed to index upload",
			zap.String("file_id", id), zap.String("filename", name), zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrStorageWrite)
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	metrics.UploadBytesTotal.Add(float64(written))
	log.Info("file uploaded",
		zap.String("file_id", id),
		zap.String("filename", name),
		zap.Int64("size", written),
		zap.String("content_type", contentType))

	uc.publish(ctx, Event{
		Type:    EventNewFile,
		Payload: NewFilePayload{ID: id, Filename: name, UploadedAt: file.UploadedAt},
	})
	return file, nil
}

func (uc *FileUseCase) checkCapacity(ctx context.Context) error {
	if uc.space == nil {
		return nil
	}

	free, err := uc.space.FreeBytes(ctx)
	if err != nil {
		uc.logger.WithContext(ctx).Error("failed to read free space", zap.Error(err))
		return apperrors.Wrap(err, apperrors.ErrStorageFull)
	}
	if free < uc.opts.MinFreeBytes {
		uc.logger.WithContext(ctx).Error("server storage low",
			zap.String("free", humanize.IBytes(free)),
			zap.String("required", humanize.IBytes(uc.opts.MinFreeBytes)))
		return apperrors.New(apperrors.ErrStorageFull,
			fmt.Sprintf("Minimum free space required: %s.", humanize.IBytes(uc.opts.MinFreeBytes)))
	}
	return nil
}

// Download 打开未过期文件的内容，调用方负责关闭 reader。
// 不存在、已逻辑过期、内容丢失对外都表现为 ErrFileNotFound。
func (uc *FileUseCase) Download(ctx context.Context, id string) (*File, io.ReadCloser, error) {
	log := uc.logger.WithContext(ctx).Logger

	file, err := uc.repo.Get(ctx, id)
	if errors.Is(err, ErrFileNotFound) {
		metrics.DownloadsTotal.WithLabelValues("not_found").Inc()
		log.Warn("download of unknown file", zap.String("file_id", id))
		return nil, nil, apperrors.Wrap(err, apperrors.ErrFileNotFound)
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrIndexFailed)
	}

	if file.ExpiredAt(uc.clock.Now(), uc.opts.ExpiryWindow) {
		metrics.DownloadsTotal.WithLabelValues("expired").Inc()
		log.Warn("download of expired file", zap.String("file_id", id))
		return nil, nil, apperrors.Wrap(ErrFileNotFound, apperrors.ErrFileNotFound)
	}

	rc, err := uc.blobs.Open(ctx, id)
	if errors.Is(err, ErrBlobNotFound) {
		metrics.DownloadsTotal.WithLabelValues("orphan").Inc()
		log.Error("file indexed but missing from storage", zap.String("file_id", id))
		return nil, nil, apperrors.Wrap(ErrFileNotFound, apperrors.ErrFileNotFound)
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrStorageRead)
	}

	metrics.DownloadsTotal.WithLabelValues("ok").Inc()
	log.Info("file downloaded", zap.String("file_id", id), zap.String("filename", file.OriginalName))
	return file, rc, nil
}

// ListPublic 公开列表：永久文件和窗口内上传的文件
func (uc *FileUseCase) ListPublic(ctx context.Context) ([]*File, error) {
	cutoff := uc.clock.Now().Add(-uc.opts.ExpiryWindow)
	files, err := uc.repo.ListVisible(ctx, cutoff)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrIndexFailed)
	}
	return files, nil
}

// ListAll 管理员查看全部文件
func (uc *FileUseCase) ListAll(ctx context.Context) ([]*File, error) {
	if err := uc.authorize(ctx); err != nil {
		return nil, err
	}
	files, err := uc.repo.ListAll(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrIndexFailed)
	}
	return files, nil
}

// Delete 管理员删除文件。记录不存在时返回 false，不视为错误。
func (uc *FileUseCase) Delete(ctx context.Context, id string) (bool, error) {
	if err := uc.authorize(ctx); err != nil {
		return false, err
	}
	log := uc.logger.WithContext(ctx).Logger

	deleted, err := uc.repo.Delete(ctx, id, func(f *File) error {
		return uc.blobs.Remove(ctx, f.ID)
	})
	if err != nil {
		metrics.AdminActionsTotal.WithLabelValues("delete", "error").Inc()
		log.Error("admin delete failed", zap.String("file_id", id), zap.Error(err))
		return false, apperrors.Wrap(err, apperrors.ErrIndexFailed)
	}
	if !deleted {
		metrics.AdminActionsTotal.WithLabelValues("delete", "noop").Inc()
		log.Info("admin delete of unknown file", zap.String("file_id", id))
		return false, nil
	}

	metrics.AdminActionsTotal.WithLabelValues("delete", "ok").Inc()
	log.Info("admin deleted file", zap.String("file_id", id))
	uc.publish(ctx, Event{Type: EventFileDeleted, Payload: FileDeletedPayload{ID: id}})
	return true, nil
}

// MakePermanent 管理员将文件设为永久保留，重复调用结果相同
func (uc *FileUseCase) MakePermanent(ctx context.Context, id string) (bool, error) {
	if err := uc.authorize(ctx); err != nil {
		return false, err
	}
	log := uc.logger.WithContext(ctx).Logger

	found, err := uc.repo.MarkPermanent(ctx, id)
	if err != nil {
		metrics.AdminActionsTotal.WithLabelValues("make_permanent", "error").Inc()
		log.Error("make permanent failed", zap.String("file_id", id), zap.Error(err))
		return false, apperrors.Wrap(err, apperrors.ErrIndexFailed)
	}
	if !found {
		metrics.AdminActionsTotal.WithLabelValues("make_permanent", "noop").Inc()
		log.Info("make permanent of unknown file", zap.String("file_id", id))
		return false, nil
	}

	metrics.AdminActionsTotal.WithLabelValues("make_permanent", "ok").Inc()
	log.Info("admin marked file as permanent", zap.String("file_id", id))
	return true, nil
}

// StorageStats 管理面板的存储统计
func (uc *FileUseCase) StorageStats(ctx context.Context) (*StorageStats, error) {
	if err := uc.authorize(ctx); err != nil {
		return nil, err
	}

	count, err := uc.repo.Count(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrIndexFailed)
	}
	used, err := uc.blobs.Usage(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorageRead)
	}

	stats := &StorageStats{Files: count, UsedBytes: used}
	if uc.space != nil {
		if free, err := uc.space.FreeBytes(ctx); err == nil {
			stats.FreeBytes = free
			stats.FreeKnown = true
		}
	}
	return stats, nil
}

// Health 检查索引是否可达
func (uc *FileUseCase) Health(ctx context.Context) error {
	return uc.repo.Ping(ctx)
}

func (uc *FileUseCase) authorize(ctx context.Context) error {
	if uc.authz == nil {
		return apperrors.Wrap(ErrNotAdmin, apperrors.ErrAuthLoginRequired)
	}
	if err := uc.authz.AuthorizeAdmin(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrAuthLoginRequired)
	}
	return nil
}

func (uc *FileUseCase) publish(ctx context.Context, event Event) {
	publishEvent(ctx, uc.notifier, uc.logger, event)
}
