package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lk2023060901/tempshare/internal/file/biz"
	"github.com/lk2023060901/tempshare/internal/pkg/diskstat"
	"github.com/spf13/afero"
)

const tempPrefix = ".upload-"

// LocalBlobStore 将内容保存为 dir 下以 id 命名的文件
type LocalBlobStore struct {
	fs   afero.Fs
	dir  string
	free func() (uint64, error)
}

// LocalOption 本地存储选项
type LocalOption func(*LocalBlobStore)

// WithFreeSpaceFunc 替换剩余空间的计算方式（内存文件系统没有 statfs）
func WithFreeSpaceFunc(fn func() (uint64, error)) LocalOption {
	return func(s *LocalBlobStore) {
		s.free = fn
	}
}

func NewLocalBlobStore(fs afero.Fs, dir string, opts ...LocalOption) (*LocalBlobStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}

	s := &LocalBlobStore{fs: fs, dir: dir}
	s.free = func() (uint64, error) {
		u, err := diskstat.Of(s.dir)
		if err != nil {
			return 0, err
		}
		return u.Free, nil
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var (
	_ biz.BlobStore    = (*LocalBlobStore)(nil)
	_ biz.SpaceChecker = (*LocalBlobStore)(nil)
)

func (s *LocalBlobStore) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, tempPrefix) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

// Put 先写临时文件再重命名，失败时不会留下不完整的内容
func (s *LocalBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	dst, err := s.path(key)
	if err != nil {
		return 0, err
	}

	tmp, err := afero.TempFile(s.fs, s.dir, tempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(tmpName)
		return 0, fmt.Errorf("failed to write blob %s: %w", key, err)
	}

	if err := s.fs.Rename(tmpName, dst); err != nil {
		_ = s.fs.Remove(tmpName)
		return 0, fmt.Errorf("failed to commit blob %s: %w", key, err)
	}
	return written, nil
}

func (s *LocalBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, biz.ErrBlobNotFound
	}

	f, err := s.fs.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, biz.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", key, err)
	}
	return f, nil
}

func (s *LocalBlobStore) Remove(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove blob %s: %w", key, err)
	}
	return nil
}

func (s *LocalBlobStore) Exists(key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, p)
}

// Usage 目录下所有内容文件的总大小
func (s *LocalBlobStore) Usage(ctx context.Context) (int64, error) {
	var total int64
	err := afero.Walk(s.fs, s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && !strings.HasPrefix(info.Name(), tempPrefix) {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk upload dir: %w", err)
	}
	return total, nil
}

func (s *LocalBlobStore) FreeBytes(ctx context.Context) (uint64, error) {
	return s.free()
}

// contextReader 在 ctx 取消后中止复制
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
