package upload

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIO stores artifacts in an S3-compatible bucket under "<folder>/<basename>".
type MinIO struct {
	client *miniogo.Client
	bucket string
}

// MinIOConfig holds the connection settings of the bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// NewMinIO creates the client. No request is made until EnsureBucket or Upload.
func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIO{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", m.bucket, err)
		}
	}
	return nil
}

// Upload puts the file at localPath into the bucket.
func (m *MinIO) Upload(ctx context.Context, localPath, folder string) error {
	key := ObjectKey(localPath, folder)
	_, err := m.client.FPutObject(ctx, m.bucket, key, localPath, miniogo.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// ObjectKey returns the remote key of an artifact.
func ObjectKey(localPath, folder string) string {
	return path.Join(folder, filepath.Base(localPath))
}

func contentType(localPath string) string {
	switch filepath.Ext(localPath) {
	case ".png":
		return "image/png"
	case ".cbor":
		return "application/cbor"
	default:
		return "application/octet-stream"
	}
}
