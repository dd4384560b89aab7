package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/minivisionary/creditwallet/internal/pkg/env"
)

// Config holds object storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PublicBaseURL   string // CDN or bucket base URL for serving objects
	LocalDir        string // Fallback directory when S3 is disabled
	Enabled         bool
}

// LoadConfig loads storage configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		PublicBaseURL:   env.GetEnv("STORAGE_PUBLIC_BASE_URL", ""),
		LocalDir:        env.GetEnv("STORAGE_LOCAL_DIR", "./uploads"),
		Enabled:         env.GetEnv("S3_STORAGE_ENABLED", "false") == "true",
	}

	// Validate required fields if S3 storage is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when S3 storage is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when S3 storage is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when S3 storage is enabled")
		}
	}

	return config, nil
}

// PublicURL builds the serving URL for an object key
func (c *Config) PublicURL(objectKey string) string {
	base := strings.TrimRight(c.PublicBaseURL, "/")
	if base == "" {
		if c.Enabled {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.BucketName, c.Region)
		} else {
			base = "/uploads"
		}
	}
	return base + "/" + strings.TrimLeft(objectKey, "/")
}
