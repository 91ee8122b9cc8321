package data

import (
	"context"
	"io"

	"github.com/lk2023060901/tempshare/internal/file/biz"
	pkgminio "github.com/lk2023060901/tempshare/internal/pkg/minio"
)

// MinIOBlobStore 将内容保存到对象存储。对象存储没有剩余空间的概念，不实现 SpaceChecker。
type MinIOBlobStore struct {
	client *pkgminio.Client
}

func NewMinIOBlobStore(client *pkgminio.Client) *MinIOBlobStore {
	return &MinIOBlobStore{client: client}
}

var _ biz.BlobStore = (*MinIOBlobStore)(nil)

func (s *MinIOBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	info, err := s.client.PutObject(ctx, key, r, size, contentType)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (s *MinIOBlobStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, _, err := s.client.GetObject(ctx, key)
	if pkgminio.IsNotFound(err) {
		return nil, biz.ErrBlobNotFound
	}
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func (s *MinIOBlobStore) Remove(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, key)
	if pkgminio.IsNotFound(err) {
		return nil
	}
	return err
}

func (s *MinIOBlobStore) Usage(ctx context.Context) (int64, error) {
	return s.client.Usage(ctx)
}
