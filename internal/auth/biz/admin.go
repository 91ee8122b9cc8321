package biz

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/tempshare/internal/auth"
	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAdminNotFound      = errors.New("admin not found")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

// 登录表单约束
const (
	UsernameMinLen = 4
	UsernameMaxLen = 20
	PasswordMinLen = 6
	PasswordMaxLen = 100
)

// Admin 管理员账号
type Admin struct {
	Username     string
	PasswordHash string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AdminRepo 管理员仓库接口
type AdminRepo interface {
	// Get 不存在时返回 ErrAdminNotFound
	Get(ctx context.Context, username string) (*Admin, error)
	// Upsert 按用户名创建或更新密码哈希
	Upsert(ctx context.Context, admin *Admin) error
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error
}

// Session 登录成功后签发的会话
type Session struct {
	Username  string
	Token     string
	ExpiresAt time.Time
}

// AdminUseCase 管理员认证业务逻辑
type AdminUseCase struct {
	repo       AdminRepo
	jwtManager *auth.JWTManager
	logger     *logger.Logger
	// dummyHash 用户名不存在时仍执行一次 bcrypt 比较，使耗时与密码错误一致
	dummyHash []byte
}

func NewAdminUseCase(repo AdminRepo, jwtManager *auth.JWTManager, log *logger.Logger) *AdminUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("tempshare-dummy-password"), bcrypt.MinCost)
	return &AdminUseCase{
		repo:       repo,
		jwtManager: jwtManager,
		logger:     log,
		dummyHash:  dummy,
	}
}

// EnsureAdmin 按配置创建管理员；已存在且密码不一致时更新哈希
func (uc *AdminUseCase) EnsureAdmin(ctx context.Context, username, password string) error {
	existing, err := uc.repo.Get(ctx, username)
	switch {
	case err == nil:
		if bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash), []byte(password)) == nil {
			return nil
		}
	case errors.Is(err, ErrAdminNotFound):
	default:
		return fmt.Errorf("failed to load admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	admin := &Admin{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if existing != nil {
		admin.CreatedAt = existing.CreatedAt
		admin.LastLoginAt = existing.LastLoginAt
	}
	if err := uc.repo.Upsert(ctx, admin); err != nil {
		return fmt.Errorf("failed to save admin: %w", err)
	}

	uc.logger.WithContext(ctx).Info("admin account provisioned",
		zap.String("username", username),
		zap.Bool("updated", existing != nil))
	return nil
}

// Authenticate 校验用户名密码
func (uc *AdminUseCase) Authenticate(ctx context.Context, username, password string) (*Admin, error) {
	admin, err := uc.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			_ = bcrypt.CompareHashAndPassword(uc.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load admin: %w", err)
	}

	// 用户名大小写必须完全一致
	if subtle.ConstantTimeCompare([]byte(admin.Username), []byte(username)) != 1 {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return admin, nil
}

// Login 认证成功后签发会话 token
func (uc *AdminUseCase) Login(ctx context.Context, username, password string) (*Session, error) {
	log := uc.logger.WithContext(ctx)

	admin, err := uc.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Warn("admin login rejected", zap.String("username", username))
		}
		return nil, err
	}

	token, expiresAt, err := uc.jwtManager.GenerateToken(admin.Username, credentialFingerprint(admin.PasswordHash))
	if err != nil {
		return nil, err
	}

	if err := uc.repo.UpdateLastLogin(ctx, admin.Username, time.Now().UTC()); err != nil {
		log.Warn("failed to record admin login", zap.String("username", admin.Username), zap.Error(err))
	}

	log.Info("admin logged in", zap.String("username", admin.Username))
	return &Session{Username: admin.Username, Token: token, ExpiresAt: expiresAt}, nil
}

// VerifySession 校验会话 token，并确认账号仍然存在且密码未变更
func (uc *AdminUseCase) VerifySession(ctx context.Context, token string) (string, error) {
	claims, err := uc.jwtManager.VerifyToken(token)
	if err != nil {
		return "", ErrInvalidSession
	}
	admin, err := uc.repo.Get(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			return "", ErrInvalidSession
		}
		return "", fmt.Errorf("failed to load admin: %w", err)
	}
	want := credentialFingerprint(admin.PasswordHash)
	if subtle.ConstantTimeCompare([]byte(claims.Fingerprint), []byte(want)) != 1 {
		uc.logger.WithContext(ctx).Warn("admin session rejected: credential fingerprint mismatch",
			zap.String("username", claims.Username))
		return "", ErrInvalidSession
	}
	return claims.Username, nil
}

// credentialFingerprint 由密码哈希派生，每次重设密码都会生成新的盐，指纹随之变化
func credentialFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:16])
}

// SessionTTL 会话有效期，用于设置 cookie
func (uc *AdminUseCase) SessionTTL() time.Duration {
	return uc.jwtManager.TTL()
}
