package biz

import (
	"context"
	"errors"
	"io"
	"time"
)

// File 一条文件索引记录
type File struct {
	ID           string
	OriginalName string
	UploadedAt   time.Time
	IsPermanent  bool
	Size         int64
	ContentType  string
}

// ExpiresAt 非永久文件的过期时间
func (f *File) ExpiresAt(window time.Duration) time.Time {
	return f.UploadedAt.Add(window)
}

// ExpiredAt 判断 now 时刻文件是否已逻辑过期（永久文件永不过期）
func (f *File) ExpiredAt(now time.Time, window time.Duration) bool {
	return !f.IsPermanent && f.ExpiresAt(window).Before(now)
}

var (
	ErrFileNotFound = errors.New("file not found")
	ErrBlobNotFound = errors.New("blob not found")
	ErrNotAdmin     = errors.New("admin privileges required")
)

// FileRepo 文件索引
type FileRepo interface {
	Create(ctx context.Context, f *File) error
	// Get 不存在时返回 ErrFileNotFound
	Get(ctx context.Context, id string) (*File, error)
	// ListVisible 永久文件与 cutoff 之后上传的文件，按上传时间倒序
	ListVisible(ctx context.Context, cutoff time.Time) ([]*File, error)
	ListAll(ctx context.Context) ([]*File, error)
	// ListExpired 非永久且 uploaded_at < cutoff 的文件，按上传时间正序，limit <= 0 不限
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*File, error)
	// MarkPermanent 返回记录是否存在
	MarkPermanent(ctx context.Context, id string) (bool, error)
	// Delete 在单行事务内删除记录。removeBlob 在删除行之前执行，返回错误则回滚。
	// 记录不存在时返回 false 且不调用 removeBlob。
	Delete(ctx context.Context, id string, removeBlob func(*File) error) (bool, error)
	// DeleteExpired 与 Delete 相同，但在事务内重新确认记录仍为非永久且 uploaded_at < cutoff，
	// 否则返回 false 且不调用 removeBlob。
	DeleteExpired(ctx context.Context, id string, cutoff time.Time, removeBlob func(*File) error) (bool, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// BlobStore 文件内容存储，以记录 id 为 key
type BlobStore interface {
	// Put 写入内容并返回写入的字节数
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	// Open 不存在时返回 ErrBlobNotFound
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove 删除内容，不存在视为成功
	Remove(ctx context.Context, key string) error
	// Usage 已用字节数
	Usage(ctx context.Context) (int64, error)
}

// SpaceChecker 报告存储介质的剩余空间
type SpaceChecker interface {
	FreeBytes(ctx context.Context) (uint64, error)
}

// 实时通知事件类型
const (
	EventNewFile     = "new_file"
	EventFileDeleted = "file_deleted"
)

// Event 推送给在线客户端的通知
type Event struct {
	Type    string
	Payload interface{}
}

// NewFilePayload new_file 事件数据
type NewFilePayload struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"upload_time"`
}

// FileDeletedPayload file_deleted 事件数据
type FileDeletedPayload struct {
	ID string `json:"id"`
}

// Notifier 尽力投递，不保证顺序与持久化
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// Authorizer 管理操作的权限检查，ctx 中没有管理员身份时返回错误
type Authorizer interface {
	AuthorizeAdmin(ctx context.Context) error
}

// Clock 时间源，测试中替换
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock 返回 UTC 墙钟
func SystemClock() Clock { return systemClock{} }

// StorageStats 管理面板展示的存储信息
type StorageStats struct {
	Files     int64
	UsedBytes int64
	FreeBytes uint64
	FreeKnown bool
}
