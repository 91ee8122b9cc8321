package data

import (
	"context"
	"time"

	"github.com/lk2023060901/tempshare/internal/auth/biz"
	"github.com/lk2023060901/tempshare/internal/pkg/database"
	"gorm.io/gorm/clause"
)

// AdminPO 管理员表
type AdminPO struct {
	Username     string     `gorm:"column:username;type:varchar(64);primaryKey"`
	PasswordHash string     `gorm:"column:password_hash;size:255;not null"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null"`
}

func (AdminPO) TableName() string {
	return "admin_users"
}

// AutoMigrate 迁移管理员表
func AutoMigrate(db *database.DB) error {
	return db.AutoMigrate(&AdminPO{})
}

// AdminRepo 管理员仓库
// 使用 internal/pkg/database 封装
type AdminRepo struct {
	db *database.DB
}

// NewAdminRepo 创建管理员仓库
func NewAdminRepo(db *database.DB) *AdminRepo {
	return &AdminRepo{db: db}
}

var _ biz.AdminRepo = (*AdminRepo)(nil)

// Get 根据用户名获取管理员
func (r *AdminRepo) Get(ctx context.Context, username string) (*biz.Admin, error) {
	var po AdminPO
	if err := r.db.WithContext(ctx).GetDB().
		Where("username = ?", username).
		Take(&po).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrAdminNotFound
		}
		return nil, err
	}
	return toBizAdmin(&po), nil
}

// Upsert 创建管理员，用户名冲突时更新密码哈希
func (r *AdminRepo) Upsert(ctx context.Context, admin *biz.Admin) error {
	po := &AdminPO{
		Username:     admin.Username,
		PasswordHash: admin.PasswordHash,
		LastLoginAt:  admin.LastLoginAt,
		CreatedAt:    admin.CreatedAt.UTC(),
		UpdatedAt:    admin.UpdatedAt.UTC(),
	}
	return r.db.WithContext(ctx).GetDB().
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"password_hash", "updated_at"}),
		}).
		Create(po).Error
}

// UpdateLastLogin 记录最近登录时间
func (r *AdminRepo) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	at = at.UTC()
	return r.db.WithContext(ctx).GetDB().
		Model(&AdminPO{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"last_login_at": at,
			"updated_at":    at,
		}).Error
}

func toBizAdmin(po *AdminPO) *biz.Admin {
	return &biz.Admin{
		Username:     po.Username,
		PasswordHash: po.PasswordHash,
		LastLoginAt:  po.LastLoginAt,
		CreatedAt:    po.CreatedAt,
		UpdatedAt:    po.UpdatedAt,
	}
}
