package minio

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// ObjectInfo is the subset of object metadata the service uses
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// PutObject uploads size bytes from reader under key. A size of -1 streams
// with multipart upload.
func (c *Client) PutObject(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (ObjectInfo, error) {
	if key == "" {
		return ObjectInfo{}, WrapError("PutObject", ErrInvalidObjectName, c.config.Bucket, key)
	}

	name := c.config.ObjectName(key)
	info, err := c.client.PutObject(ctx, c.config.Bucket, name, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return ObjectInfo{}, WrapError("PutObject", err, c.config.Bucket, name)
	}

	c.logger.Debug("object uploaded",
		zap.String("bucket", c.config.Bucket),
		zap.String("object", name),
		zap.Int64("size", info.Size),
	)
	return ObjectInfo{Key: key, Size: info.Size, ContentType: contentType}, nil
}

// GetObject opens key for reading. The object is stat'ed first so a missing
// key surfaces here instead of on the first Read.
func (c *Client) GetObject(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	name := c.config.ObjectName(key)
	obj, err := c.client.GetObject(ctx, c.config.Bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, WrapError("GetObject", err, c.config.Bucket, name)
	}

	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, ObjectInfo{}, WrapError("GetObject", err, c.config.Bucket, name)
	}
	return obj, ObjectInfo{Key: key, Size: st.Size, ContentType: st.ContentType}, nil
}

// StatObject returns metadata for key
func (c *Client) StatObject(ctx context.Context, key string) (ObjectInfo, error) {
	name := c.config.ObjectName(key)
	st, err := c.client.StatObject(ctx, c.config.Bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, WrapError("StatObject", err, c.config.Bucket, name)
	}
	return ObjectInfo{Key: key, Size: st.Size, ContentType: st.ContentType}, nil
}

// RemoveObject deletes key. S3 semantics make removing a missing key a success.
func (c *Client) RemoveObject(ctx context.Context, key string) error {
	name := c.config.ObjectName(key)
	if err := c.client.RemoveObject(ctx, c.config.Bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return WrapError("RemoveObject", err, c.config.Bucket, name)
	}
	c.logger.Debug("object removed", zap.String("bucket", c.config.Bucket), zap.String("object", name))
	return nil
}

// Usage sums the size of every object under the configured prefix
func (c *Client) Usage(ctx context.Context) (int64, error) {
	var total int64
	for obj := range c.client.ListObjects(ctx, c.config.Bucket, minio.ListObjectsOptions{
		Prefix:    c.config.Prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return 0, WrapError("ListObjects", obj.Err, c.config.Bucket, "")
		}
		total += obj.Size
	}
	return total, nil
}
