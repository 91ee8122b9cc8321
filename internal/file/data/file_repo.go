package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/tempshare/internal/file/biz"
	"github.com/lk2023060901/tempshare/internal/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FilePO 文件索引表
type FilePO struct {
	ID           string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OriginalName string    `gorm:"column:original_name;size:255;not null"`
	UploadedAt   time.Time `gorm:"column:uploaded_at;not null;index:idx_files_expiry,priority:2"`
	IsPermanent  bool      `gorm:"column:is_permanent;not null;default:false;index:idx_files_expiry,priority:1"`
	Size         int64     `gorm:"column:size;not null;default:0"`
	ContentType  string    `gorm:"column:content_type;size:255"`
}

func (FilePO) TableName() string {
	return "files"
}

func (po *FilePO) toBiz() *biz.File {
	return &biz.File{
		ID:           po.ID,
		OriginalName: po.OriginalName,
		UploadedAt:   po.UploadedAt.UTC(),
		IsPermanent:  po.IsPermanent,
		Size:         po.Size,
		ContentType:  po.ContentType,
	}
}

// AutoMigrate 迁移文件索引表
func AutoMigrate(db *database.DB) error {
	return db.AutoMigrate(&FilePO{})
}

// FileRepo 基于 GORM 的文件索引
type FileRepo struct {
	db *database.DB
}

func NewFileRepo(db *database.DB) *FileRepo {
	return &FileRepo{db: db}
}

var _ biz.FileRepo = (*FileRepo)(nil)

func (r *FileRepo) Create(ctx context.Context, f *biz.File) error {
	po := &FilePO{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		UploadedAt:   f.UploadedAt.UTC(),
		IsPermanent:  f.IsPermanent,
		Size:         f.Size,
		ContentType:  f.ContentType,
	}
	if err := r.db.WithContext(ctx).GetDB().Create(po).Error; err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}
	return nil
}

func (r *FileRepo) Get(ctx context.Context, id string) (*biz.File, error) {
	var po FilePO
	err := r.db.WithContext(ctx).GetDB().Where("id = ?", id).Take(&po).Error
	if database.IsRecordNotFoundError(err) {
		return nil, biz.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return po.toBiz(), nil
}

func (r *FileRepo) ListVisible(ctx context.Context, cutoff time.Time) ([]*biz.File, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("is_permanent = ? OR uploaded_at >= ?", true, cutoff.UTC()).
			Order("uploaded_at DESC")
	})
}

func (r *FileRepo) ListAll(ctx context.Context) ([]*biz.File, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Order("uploaded_at DESC")
	})
}

func (r *FileRepo) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*biz.File, error) {
	return r.list(ctx, expiredScope(cutoff), func(db *gorm.DB) *gorm.DB {
		db = db.Order("uploaded_at ASC")
		if limit > 0 {
			db = db.Limit(limit)
		}
		return db
	})
}

func (r *FileRepo) list(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) ([]*biz.File, error) {
	var pos []FilePO
	if err := r.db.WithContext(ctx).GetDB().Scopes(scopes...).Find(&pos).Error; err != nil {
		return nil, fmt.Errorf("failed to list file records: %w", err)
	}

	files := make([]*biz.File, len(pos))
	for i := range pos {
		files[i] = pos[i].toBiz()
	}
	return files, nil
}

func (r *FileRepo) MarkPermanent(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).GetDB().
		Model(&FilePO{}).
		Where("id = ?", id).
		Update("is_permanent", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark file permanent: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *FileRepo) Delete(ctx context.Context, id string, removeBlob func(*biz.File) error) (bool, error) {
	return r.deleteLocked(ctx, id, removeBlob)
}

func (r *FileRepo) DeleteExpired(ctx context.Context, id string, cutoff time.Time, removeBlob func(*biz.File) error) (bool, error) {
	return r.deleteLocked(ctx, id, removeBlob, expiredScope(cutoff))
}

// deleteLocked 锁定记录后按 scopes 重新确认，先删内容再删行，二者在同一事务内提交。
// SQLite 不支持行锁，由单连接串行化保证。
func (r *FileRepo) deleteLocked(ctx context.Context, id string, removeBlob func(*biz.File) error, scopes ...func(*gorm.DB) *gorm.DB) (bool, error) {
	var deleted bool
	err := r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		var po FilePO
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(scopes...).
			Where("id = ?", id).
			Take(&po).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load file record: %w", err)
		}

		if removeBlob != nil {
			if err := removeBlob(po.toBiz()); err != nil {
				return fmt.Errorf("failed to remove blob: %w", err)
			}
		}

		res := tx.Where("id = ?", id).Delete(&FilePO{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete file record: %w", res.Error)
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (r *FileRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).GetDB().Model(&FilePO{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count file records: %w", err)
	}
	return n, nil
}

// Ping 查询索引表确认数据库可用
func (r *FileRepo) Ping(ctx context.Context) error {
	var ids []string
	return r.db.WithContext(ctx).GetDB().Model(&FilePO{}).Limit(1).Pluck("id", &ids).Error
}

func expiredScope(cutoff time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("is_permanent = ? AND uploaded_at < ?", false, cutoff.UTC())
	}
}
