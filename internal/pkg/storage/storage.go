package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// Store persists generated poster images and returns their public URL.
type Store interface {
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, objectKey string) error
}

// NewStoreFromEnv builds an S3-backed store when configured and falls back to
// local disk otherwise.
func NewStoreFromEnv() (Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Infof("[Storage] S3 disabled, serving from local directory %s", cfg.LocalDir)
		return &localStore{config: cfg}, nil
	}
	return newS3Store(cfg)
}

// s3Store uploads objects to an S3 or S3-compatible bucket
type s3Store struct {
	client *s3.Client
	config *Config
}

func newS3Store(cfg *Config) (*s3Store, error) {
	awsConfig, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible services need path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	log.Infof("[Storage] Initialized S3 client for bucket: %s", cfg.BucketName)
	return &s3Store{client: client, config: cfg}, nil
}

func (s *s3Store) Upload(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.BucketName),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Infof("[Storage] Uploaded s3://%s/%s (%d bytes)", s.config.BucketName, objectKey, len(data))
	return s.config.PublicURL(objectKey), nil
}

func (s *s3Store) Delete(ctx context.Context, objectKey string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.BucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

// localStore writes objects to the local filesystem (dev fallback)
type localStore struct {
	config *Config
}

func (s *localStore) Upload(_ context.Context, objectKey string, data []byte, _ string) (string, error) {
	path := filepath.Join(s.config.LocalDir, filepath.FromSlash(objectKey))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return s.config.PublicURL(objectKey), nil
}

func (s *localStore) Delete(_ context.Context, objectKey string) error {
	path := filepath.Join(s.config.LocalDir, filepath.FromSlash(objectKey))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
