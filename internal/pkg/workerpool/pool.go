package workerpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Statistics 统计信息
type Statistics struct {
	Submitted int64 // 已提交
	Completed int64 // 已完成
	Panicked  int64 // 发生 panic
}

// Pool 基于 ants 的固定大小 worker pool
type Pool struct {
	pool   *ants.Pool
	logger *zap.Logger

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
}

// New 创建 size 个 worker 的 Pool。任务 panic 会被记录而不会拖垮进程。
func New(size int, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		size = 1
	}

	p := &Pool{logger: logger}
	antsPool, err := ants.NewPool(size,
		ants.WithPanicHandler(func(r interface{}) {
			p.panicked.Add(1)
			p.completed.Add(1)
			logger.Error("worker panic", zap.Any("error", r), zap.Stack("stacktrace"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}
	p.pool = antsPool
	return p, nil
}

// Submit 提交任务，worker 全忙时阻塞等待
func (p *Pool) Submit(task func()) error {
	err := p.pool.Submit(func() {
		task()
		p.completed.Add(1)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	if err != nil {
		return err
	}
	p.submitted.Add(1)
	return nil
}

// SubmitWait 提交一批任务并等待全部结束。提交失败的任务不会执行，
// 返回第一个提交错误。
func (p *Pool) SubmitWait(tasks ...func()) error {
	var (
		wg       sync.WaitGroup
		firstErr error
	)
	for _, task := range tasks {
		task := task
		wg.Add(1)
		err := p.Submit(func() {
			defer wg.Done()
			task()
		})
		if err != nil {
			wg.Done()
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	wg.Wait()
	return firstErr
}

// Size worker 上限
func (p *Pool) Size() int {
	return p.pool.Cap()
}

// Running 获取运行中的 worker 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Stats 获取统计信息
func (p *Pool) Stats() Statistics {
	return Statistics{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

// Shutdown 释放 worker
func (p *Pool) Shutdown() {
	p.pool.Release()
}
