package biz_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/tempshare/internal/file/biz"
	"github.com/lk2023060901/tempshare/internal/file/data"
	"github.com/lk2023060901/tempshare/internal/pkg/database"
	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"github.com/lk2023060901/tempshare/internal/pkg/workerpool"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testWindow  = 10 * time.Minute
	testMinFree = uint64(2) << 30
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSpace struct {
	mu   sync.Mutex
	free uint64
	err  error
}

func (s *fakeSpace) FreeBytes(context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.free, s.err
}

func (s *fakeSpace) set(free uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.free = free
}

type recorder struct {
	mu     sync.Mutex
	events []biz.Event
}

func (r *recorder) Publish(_ context.Context, ev biz.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// count 统计某类事件中 id 匹配的次数
func (r *recorder) count(typ, id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ev := range r.events {
		if ev.Type != typ {
			continue
		}
		switch p := ev.Payload.(type) {
		case biz.NewFilePayload:
			if p.ID == id {
				n++
			}
		case biz.FileDeletedPayload:
			if p.ID == id {
				n++
			}
		}
	}
	return n
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type adminAuthz struct{ deny bool }

func (a adminAuthz) AuthorizeAdmin(context.Context) error {
	if a.deny {
		return biz.ErrNotAdmin
	}
	return nil
}

// flakyBlobs 对指定 key 的删除返回错误
type flakyBlobs struct {
	biz.BlobStore
	mu       sync.Mutex
	failKeys map[string]bool
}

func (b *flakyBlobs) Remove(ctx context.Context, key string) error {
	b.mu.Lock()
	fail := b.failKeys[key]
	b.mu.Unlock()
	if fail {
		return errors.New("permission denied")
	}
	return b.BlobStore.Remove(ctx, key)
}

func (b *flakyBlobs) heal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failKeys = nil
}

type testEnv struct {
	uc      *biz.FileUseCase
	sweeper *biz.Sweeper
	repo    *data.FileRepo
	local   *data.LocalBlobStore
	blobs   *flakyBlobs
	fs      afero.Fs
	clock   *fakeClock
	space   *fakeSpace
	events  *recorder
}

type envOption func(*envConfig)

type envConfig struct {
	authz  biz.Authorizer
	repo   func(biz.FileRepo) biz.FileRepo
	locker biz.Locker
}

func withAuthorizer(a biz.Authorizer) envOption {
	return func(c *envConfig) { c.authz = a }
}

func withRepo(wrap func(biz.FileRepo) biz.FileRepo) envOption {
	return func(c *envConfig) { c.repo = wrap }
}

func withLocker(l biz.Locker) envOption {
	return func(c *envConfig) { c.locker = l }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := envConfig{authz: adminAuthz{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	dbCfg := database.DefaultConfig()
	dbCfg.Path = filepath.Join(t.TempDir(), "files.db")
	dbCfg.LogLevel = "silent"
	db, err := database.New(dbCfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, data.AutoMigrate(db))

	fs := afero.NewMemMapFs()
	local, err := data.NewLocalBlobStore(fs, "Uploads")
	require.NoError(t, err)

	pool, err := workerpool.New(4, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)

	env := &testEnv{
		repo:   data.NewFileRepo(db),
		local:  local,
		blobs:  &flakyBlobs{BlobStore: local},
		fs:     fs,
		clock:  &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		space:  &fakeSpace{free: 100 << 30},
		events: &recorder{},
	}

	var repo biz.FileRepo = env.repo
	if cfg.repo != nil {
		repo = cfg.repo(repo)
	}

	env.uc = biz.NewFileUseCase(repo, env.blobs, env.space, env.events, cfg.authz, env.clock,
		biz.Options{ExpiryWindow: testWindow, MinFreeBytes: testMinFree, MaxUploadBytes: 1 << 20},
		logger.NewNop())
	env.sweeper = biz.NewSweeper(repo, env.blobs, env.events, env.clock, pool, cfg.locker,
		biz.SweeperOptions{Interval: 20 * time.Millisecond, ExpiryWindow: testWindow},
		logger.NewNop())
	return env
}

func (e *testEnv) blobExists(t *testing.T, id string) bool {
	t.Helper()
	ok, err := e.local.Exists(id)
	require.NoError(t, err)
	return ok
}
