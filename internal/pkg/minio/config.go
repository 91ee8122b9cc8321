package minio

import (
	"errors"
)

// Config represents the configuration for the MinIO blob backend
type Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_key"`
	Region          string `mapstructure:"region"`
	UseSSL          bool   `mapstructure:"use_ssl"`

	// Bucket holds every uploaded blob, keyed by record id
	Bucket string `mapstructure:"bucket"`
	// Prefix is prepended to every object name
	Prefix string `mapstructure:"prefix"`
	// CreateBucket creates Bucket on startup when missing
	CreateBucket bool `mapstructure:"create_bucket"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: endpoint is required")
	}
	if c.AccessKeyID == "" {
		return errors.New("minio: access key ID is required")
	}
	if c.SecretAccessKey == "" {
		return errors.New("minio: secret access key is required")
	}
	if c.Bucket == "" {
		return errors.New("minio: bucket is required")
	}
	return nil
}

// ObjectName maps a blob key to its object name
func (c *Config) ObjectName(key string) string {
	return c.Prefix + key
}
