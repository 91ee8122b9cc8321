package minio

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{Endpoint: "localhost:9000", AccessKeyID: "ak", SecretAccessKey: "sk", Bucket: "uploads"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "no endpoint", mutate: func(c *Config) { c.Endpoint = "" }},
		{name: "no access key", mutate: func(c *Config) { c.AccessKeyID = "" }},
		{name: "no secret", mutate: func(c *Config) { c.SecretAccessKey = "" }},
		{name: "no bucket", mutate: func(c *Config) { c.Bucket = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestObjectName(t *testing.T) {
	cfg := Config{Prefix: "blobs/"}
	assert.Equal(t, "blobs/abc", cfg.ObjectName("abc"))
}

func TestIsNotFound(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.True(t, IsNotFound(WrapError("GetObject", ErrObjectNotFound, "b", "o")))
	assert.True(t, IsNotFound(WrapError("StatObject", minio.ErrorResponse{Code: "NoSuchKey"}, "b", "o")))
	assert.False(t, IsNotFound(WrapError("StatObject", minio.ErrorResponse{Code: "AccessDenied"}, "b", "o")))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestNewClientRejectsInvalidConfig(t *testing.T) {
	_, err := NewClient(context.Background(), nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewClient(context.Background(), &Config{}, zap.NewNop())
	assert.Error(t, err)
}
