// Package artifacts keeps rendered publication files in S3-compatible object
// storage.
package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type Store struct {
	client *minio.Client
	bucket string
}

func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("artifact storage endpoint is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket on first start.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// ObjectKey is where the published PDF of one content version lives.
func ObjectKey(minutesID string, version int) string {
	return fmt.Sprintf("minutes/%s/v%d.pdf", minutesID, version)
}

// PutMinutesPDF uploads the PDF and returns its URL.
func (s *Store) PutMinutesPDF(ctx context.Context, minutesID string, version int, data []byte) (string, error) {
	key := ObjectKey(minutesID, version)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:        "application/pdf",
		ContentDisposition: fmt.Sprintf("inline; filename=%q", fmt.Sprintf("minutes-v%d.pdf", version)),
		UserMetadata: map[string]string{
			"minutes-id":      minutesID,
			"minutes-version": fmt.Sprintf("%d", version),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.URL(key), nil
}

func (s *Store) URL(key string) string {
	base := s.client.EndpointURL()
	return fmt.Sprintf("%s://%s/%s/%s", base.Scheme, base.Host, s.bucket, key)
}
