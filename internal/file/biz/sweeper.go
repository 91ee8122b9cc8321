package biz

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/tempshare/internal/pkg/logger"
	"github.com/lk2023060901/tempshare/internal/pkg/metrics"
	"github.com/lk2023060901/tempshare/internal/pkg/workerpool"
	"go.uber.org/zap"
)

// Locker 多实例部署时保证同一轮清理只有一个实例执行
type Locker interface {
	// TryLock 锁被其他实例持有时返回 ok=false, err=nil
	TryLock(ctx context.Context) (unlock func(), ok bool, err error)
}

// SweeperOptions 清理参数
type SweeperOptions struct {
	Interval     time.Duration
	ExpiryWindow time.Duration
	BatchSize    int // 单轮最多处理的记录数，<= 0 不限
}

// SweepResult 单轮清理统计
type SweepResult struct {
	Scanned  int
	Deleted  int
	Skipped  int  // 重新确认时已被删除或已设为永久
	Failed   int  // 下一轮重试
	LockBusy bool // 其他实例正在清理，本轮未执行
	Duration time.Duration
}

// Sweeper 周期性删除过期的非永久文件
type Sweeper struct {
	repo     FileRepo
	blobs    BlobStore
	notifier Notifier
	clock    Clock
	pool     *workerpool.Pool // nil 时逐条串行处理
	locker   Locker           // nil 时不加锁
	opts     SweeperOptions
	logger   *logger.Logger

	runMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewSweeper(
	repo FileRepo,
	blobs BlobStore,
	notifier Notifier,
	clock Clock,
	pool *workerpool.Pool,
	locker Locker,
	opts SweeperOptions,
	log *logger.Logger,
) *Sweeper {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &Sweeper{
		repo:     repo,
		blobs:    blobs,
		notifier: notifier,
		clock:    clock,
		pool:     pool,
		locker:   locker,
		opts:     opts,
		logger:   log.Named("sweeper"),
	}
}

// Start 立即执行一轮，之后按固定间隔执行，直到 Stop 或 ctx 结束
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.loop(ctx, s.stopCh)

	s.logger.Info("sweeper started",
		zap.Duration("interval", s.opts.Interval),
		zap.Duration("expiry_window", s.opts.ExpiryWindow))
	return nil
}

// Stop 停止调度并等待正在进行的一轮结束，可重复调用
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopCh)
	s.wg.Wait()
	s.running = false
	s.logger.Info("sweeper stopped")
}

// Running 是否在调度中
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	res, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		return
	}
	if res.LockBusy {
		s.logger.Debug("sweep skipped, lock held by another instance")
		return
	}
	if res.Scanned > 0 {
		s.logger.Info("sweep finished",
			zap.Int("scanned", res.Scanned),
			zap.Int("deleted", res.Deleted),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed),
			zap.Duration("duration", res.Duration))
	}
}

// RunOnce 执行一轮清理。单条记录失败不会中断本轮，只计入 Failed。
// 返回的 error 只表示本轮无法开始（取锁或查询失败）。
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	var res SweepResult
	start := time.Now()

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx)
		if err != nil {
			return res, fmt.Errorf("failed to acquire sweeper lock: %w", err)
		}
		if !ok {
			metrics.SweeperSkippedRunsTotal.Inc()
			res.LockBusy = true
			return res, nil
		}
		defer unlock()
	}

	metrics.SweeperRunsTotal.Inc()
	defer func() {
		res.Duration = time.Since(start)
		metrics.SweeperDurationSeconds.Observe(res.Duration.Seconds())
	}()

	cutoff := s.clock.Now().Add(-s.opts.ExpiryWindow)
	files, err := s.repo.ListExpired(ctx, cutoff, s.opts.BatchSize)
	if err != nil {
		return res, fmt.Errorf("failed to list expired files: %w", err)
	}
	res.Scanned = len(files)
	if len(files) == 0 {
		return res, nil
	}

	var deleted, skipped atomic.Int64
	tasks := make([]func(), 0, len(files))
	for _, f := range files {
		f := f
		tasks = append(tasks, func() {
			ok, err := s.sweepOne(ctx, f, cutoff)
			switch {
			case err != nil:
			case ok:
				deleted.Add(1)
			default:
				skipped.Add(1)
			}
		})
	}

	if s.pool != nil {
		if err := s.pool.SubmitWait(tasks...); err != nil {
			s.logger.Warn("some sweep tasks were not scheduled", zap.Error(err))
		}
	} else {
		for _, task := range tasks {
			task()
		}
	}

	res.Deleted = int(deleted.Load())
	res.Skipped = int(skipped.Load())
	res.Failed = res.Scanned - res.Deleted - res.Skipped
	return res, nil
}

// sweepOne 删除单条过期记录。事务内重新确认记录仍满足过期条件，
// 先删内容再删行，提交后通知一次。
func (s *Sweeper) sweepOne(ctx context.Context, f *File, cutoff time.Time) (bool, error) {
	log := s.logger.With(zap.String("file_id", f.ID), zap.String("filename", f.OriginalName))

	deleted, err := s.repo.DeleteExpired(ctx, f.ID, cutoff, func(cur *File) error {
		return s.blobs.Remove(ctx, cur.ID)
	})
	if err != nil {
		metrics.SweeperErrorsTotal.Inc()
		log.Error("failed to delete expired file", zap.Error(err))
		return false, err
	}
	if !deleted {
		log.Debug("expired file changed before delete, skipped")
		return false, nil
	}

	metrics.SweeperFilesDeletedTotal.Inc()
	log.Info("expired file deleted")
	publishEvent(ctx, s.notifier, s.logger, Event{
		Type:    EventFileDeleted,
		Payload: FileDeletedPayload{ID: f.ID},
	})
	return true, nil
}

// publishEvent 尽力投递通知，失败只记录日志
func publishEvent(ctx context.Context, n Notifier, log *logger.Logger, event Event) {
	if n == nil {
		return
	}
	if err := n.Publish(ctx, event); err != nil {
		log.WithContext(ctx).Warn("failed to publish event",
			zap.String("type", event.Type), zap.Error(err))
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(event.Type).Inc()
}
