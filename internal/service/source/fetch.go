package source

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"proctor/internal/config"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const objectScheme = "s3://"

// Fetcher downloads recordings kept in S3-compatible object storage.
type Fetcher struct {
	client *minio.Client
}

// NewFetcher returns nil when no endpoint is configured.
func NewFetcher(config *config.Config) (*Fetcher, error) {
	if config.S3Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(config.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.S3AccessKey, config.S3SecretKey, ""),
		Secure: config.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return &Fetcher{client: client}, nil
}

// IsRemote reports whether location names an object rather than a local file.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, objectScheme)
}

// ParseObjectURL splits s3://bucket/key.
func ParseObjectURL(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, objectScheme)
	if !ok {
		return "", "", fmt.Errorf("not an object url: %s", location)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("object url must be s3://bucket/key: %s", location)
	}
	return bucket, key, nil
}

// Fetch downloads location into dir and returns the local file path.
func (f *Fetcher) Fetch(ctx context.Context, location, dir string) (string, error) {
	bucket, key, err := ParseObjectURL(location)
	if err != nil {
		return "", err
	}

	target := filepath.Join(dir, path.Base(key))
	if err := f.client.FGetObject(ctx, bucket, key, target, minio.GetObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", sourceError("Video file does not exist: "+location, err)
		}
		return "", fmt.Errorf("download %s: %w", location, err)
	}
	return target, nil
}
