// Package storage provisions the frozen model artifact at process start.
// Uploaded audio and prediction results are never persisted.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ModelFetcher downloads the ONNX weight file from object storage.
type ModelFetcher interface {
	Fetch(ctx context.Context, destPath string) error
}

type modelFetcher struct {
	client *s3.Client
	bucket string
	key    string
}

// FetcherConfig holds configuration for the model fetcher.
type FetcherConfig struct {
	Bucket    string
	Key       string
	Endpoint  string // MinIO-compatible endpoint; empty means AWS S3
	Region    string
	AccessKey string
	SecretKey string
}

// NewModelFetcher creates a fetcher for the configured bucket/key.
func NewModelFetcher(cfg FetcherConfig) (ModelFetcher, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, fmt.Errorf("MODEL_S3_BUCKET and MODEL_S3_KEY are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "http://" + endpoint
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true // MinIO requires path-style URLs
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &modelFetcher{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

// Fetch downloads the weight file to destPath. The download goes through
// a temp file in the destination directory and is renamed into place, so
// a partial download never masquerades as a model.
func (f *modelFetcher) Fetch(ctx context.Context, destPath string) error {
	log.Info().Str("bucket", f.bucket).Str("key", f.key).Str("dest", destPath).Msg("Fetching model artifact")

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		return fmt.Errorf("failed to fetch model %s/%s: %w", f.bucket, f.key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".model-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, err := io.Copy(tmp, out.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}

	log.Info().Int64("bytes", written).Msg("Model artifact downloaded")
	return nil
}
