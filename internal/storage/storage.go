package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/dethiai/dethiai-backend/internal/config"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage wraps MinIO/S3 interactions for uploaded source files and the
// transient per-page image scratch area.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client: client,
		bucket: cfg.S3Bucket,
		region: cfg.S3Region,
	}, nil
}

// EnsureBucket makes sure the bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// SourceKey is the object key for a document's uploaded source file.
func SourceKey(ownerID string, documentID uuid.UUID, filename string) string {
	return fmt.Sprintf("sources/%s/%s/%s", ownerID, documentID, filename)
}

// PageKey is the object key for one rasterized page image in the scratch area.
func PageKey(documentID uuid.UUID, pageIndex int) string {
	return fmt.Sprintf("pages/%s/page_%04d.jpg", documentID, pageIndex)
}

// PagePrefix is the scratch prefix holding all of a document's page images.
func PagePrefix(documentID uuid.UUID) string {
	return fmt.Sprintf("pages/%s/", documentID)
}

// Upload stores an object under the given key.
func (s *Storage) Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, objectKey, reader, size, opts); err != nil {
		return fmt.Errorf("upload object %s: %w", objectKey, err)
	}
	return nil
}

// UploadBytes stores a byte slice under the given key.
func (s *Storage) UploadBytes(ctx context.Context, objectKey string, data []byte, contentType string) error {
	return s.Upload(ctx, objectKey, bytes.NewReader(data), int64(len(data)), contentType)
}

// Download fetches an object's full contents.
func (s *Storage) Download(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", objectKey, err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", objectKey, err)
	}
	return buf, nil
}

// Remove deletes one object. Missing objects are not an error.
func (s *Storage) Remove(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", objectKey, err)
	}
	return nil
}

// RemovePrefix deletes every object under the given prefix. Used to reclaim
// the page-image scratch area after extraction, on both success and failure.
func (s *Storage) RemovePrefix(ctx context.Context, prefix string) error {
	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var firstErr error
	for obj := range objectCh {
		if obj.Err != nil {
			if firstErr == nil {
				firstErr = obj.Err
			}
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove object %s: %w", obj.Key, err)
		}
	}
	return firstErr
}
