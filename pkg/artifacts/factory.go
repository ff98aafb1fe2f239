package artifacts

import (
	"context"
	"fmt"
)

// Backend names an archive backend.
type Backend string

const (
	BackendNone Backend = ""
	BackendFS   Backend = "fs"
	BackendS3   Backend = "s3"
	BackendGCS  Backend = "gcs"
)

// Config selects and configures an archive backend.
type Config struct {
	Backend  Backend `yaml:"backend"`
	Dir      string  `yaml:"dir"`
	Bucket   string  `yaml:"bucket"`
	Region   string  `yaml:"region"`
	Endpoint string  `yaml:"endpoint"`
	Prefix   string  `yaml:"prefix"`
}

// NewStore builds the configured backend. BackendNone returns a nil Store.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendNone:
		return nil, nil
	case BackendFS:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("fs archive requires a directory")
		}
		return NewFileStore(cfg.Dir)
	case BackendS3:
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		return NewS3Store(ctx, S3Config{Bucket: cfg.Bucket, Region: region, Endpoint: cfg.Endpoint, Prefix: cfg.Prefix})
	case BackendGCS:
		return newGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", cfg.Backend)
	}
}
