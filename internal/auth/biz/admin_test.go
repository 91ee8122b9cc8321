package biz_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lk2023060901/tempshare/internal/auth"
	"github.com/lk2023060901/tempshare/internal/auth/biz"
	"github.com/lk2023060901/tempshare/internal/auth/data"
	"github.com/lk2023060901/tempshare/internal/pkg/database"
	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminUseCase(t *testing.T) (*biz.AdminUseCase, *data.AdminRepo) {
	t.Helper()
	cfg := database.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "admins.db")
	cfg.LogLevel = "silent"

	db, err := database.New(cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, data.AutoMigrate(db))

	repo := data.NewAdminRepo(db)
	jwtManager := auth.NewJWTManager("test-secret-key", "tempshare", time.Hour)
	return biz.NewAdminUseCase(repo, jwtManager, logger.NewNop()), repo
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	uc, repo := newAdminUseCase(t)

	require.NoError(t, uc.EnsureAdmin(ctx, "admin", "admin123"))
	first, err := repo.Get(ctx, "admin")
	require.NoError(t, err)
	assert.NotEqual(t, "admin123", first.PasswordHash)

	// 密码未变时不重写哈希
	require.NoError(t, uc.EnsureAdmin(ctx, "admin", "admin123"))
	same, err := repo.Get(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, first.PasswordHash, same.PasswordHash)

	// 配置中的密码变更后旧密码失效
	require.NoError(t, uc.EnsureAdmin(ctx, "admin", "rotated-pass"))
	_, err = uc.Authenticate(ctx, "admin", "admin123")
	assert.ErrorIs(t, err, biz.ErrInvalidCredentials)
	_, err = uc.Authenticate(ctx, "admin", "rotated-pass")
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	uc, repo := newAdminUseCase(t)
	require.NoError(t, uc.EnsureAdmin(ctx, "admin", "admin123"))

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"valid", "admin", "admin123", nil},
		{"wrong password", "admin", "admin124", biz.ErrInvalidCredentials},
		{"unknown user", "nobody", "admin123", biz.ErrInvalidCredentials},
		{"empty password", "admin", "", biz.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := uc.Login(ctx, tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, session)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "admin", session.Username)
			assert.NotEmpty(t, session.Token)
			assert.True(t, session.ExpiresAt.After(time.Now()))

			name, err := uc.VerifySession(ctx, session.Token)
			require.NoError(t, err)
			assert.Equal(t, "admin", name)

			admin, err := repo.Get(ctx, "admin")
			require.NoError(t, err)
			assert.NotNil(t, admin.LastLoginAt)
		})
	}
}

func TestVerifySession(t *testing.T) {
	ctx := context.Background()
	uc, _ := newAdminUseCase(t)
	require.NoError(t, uc.EnsureAdmin(ctx, "admin", "admin123"))

	_, err := uc.VerifySession(ctx, "garbage")
	assert.ErrorIs(t, err, biz.ErrInvalidSession)

	// 账号已不存在的 token 失效
	orphan, _, err := auth.NewJWTManager("test-secret-key", "tempshare", time.Hour).GenerateToken("ghost", "")
	require.NoError(t, err)
	_, err = uc.VerifySession(ctx, orphan)
	assert.ErrorIs(t, err, biz.ErrInvalidSession)

	assert.Equal(t, time.Hour, uc.SessionTTL())
}

func TestVerifySession_CredentialBinding(t *testing.T) {
	ctx := context.Background()
	uc, _ := newAdminUseCase(t)
	require.NoError(t, uc.EnsureAdmin(ctx, "admin", "admin123"))

	session, err := uc.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	// 持有签名密钥也无法伪造会话：缺少凭据指纹
	signer := auth.NewJWTManager("test-secret-key", "tempshare", time.Hour)
	tests := []struct {
		name        string
		fingerprint string
	}{
		{"no fingerprint", ""},
		{"guessed fingerprint", "00000000000000000000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forged, _, err := signer.GenerateToken("admin", tt.fingerprint)
			require.NoError(t, err)
			_, err = uc.VerifySession(ctx, forged)
			assert.ErrorIs(t, err, biz.ErrInvalidSession)
		})
	}

	name, err := uc.VerifySession(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", name)

	// 密码轮换后旧会话失效，新登录可用
	require.NoError(t, uc.EnsureAdmin(ctx, "admin", "rotated-pass"))
	_, err = uc.VerifySession(ctx, session.Token)
	assert.ErrorIs(t, err, biz.ErrInvalidSession)

	fresh, err := uc.Login(ctx, "admin", "rotated-pass")
	require.NoError(t, err)
	_, err = uc.VerifySession(ctx, fresh.Token)
	assert.NoError(t, err)
}
