package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"go.uber.org/zap"

	"github.com/garyjia/biller/internal/application/port"
	"github.com/garyjia/biller/internal/domain/entity"
)

// S3Config selects the bucket generated PDFs are written to
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3FileStorage implements port.FileStorage on Amazon S3 or a compatible service
type S3FileStorage struct {
	client s3iface.S3API
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3FileStorage creates an S3 session from cfg. Static credentials are
// used when both keys are set, otherwise the default AWS credential chain.
func NewS3FileStorage(cfg S3Config, logger *zap.Logger) (port.FileStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	logger.Info("S3 storage configured",
		zap.String("bucket", cfg.Bucket),
		zap.String("prefix", cfg.Prefix),
		zap.String("region", cfg.Region))

	return NewS3FileStorageWithClient(s3.New(sess), cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3FileStorageWithClient wraps an existing S3 client
func NewS3FileStorageWithClient(client s3iface.S3API, bucket, prefix string, logger *zap.Logger) *S3FileStorage {
	return &S3FileStorage{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Save uploads content as a private object
func (s *S3FileStorage) Save(ctx context.Context, relativePath string, content []byte) error {
	key := s.key(relativePath)

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentTypeFor(key)),
	})
	if err != nil {
		s.logger.Error("Failed to upload object",
			zap.String("bucket", s.bucket),
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to upload object: %w", err)
	}

	s.logger.Debug("Object uploaded",
		zap.String("key", key),
		zap.Int("size", len(content)))
	return nil
}

// Read downloads the object, or returns entity.ErrNotFound
func (s *S3FileStorage) Read(ctx context.Context, relativePath string) ([]byte, error) {
	key := s.key(relativePath)

	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("object %s: %w", key, entity.ErrNotFound)
		}
		s.logger.Error("Failed to get object",
			zap.String("bucket", s.bucket),
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

// Exists issues a HEAD request for the object
func (s *S3FileStorage) Exists(ctx context.Context, relativePath string) bool {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(relativePath)),
	})
	return err == nil
}

// Delete removes the object; S3 treats missing keys as success
func (s *S3FileStorage) Delete(ctx context.Context, relativePath string) error {
	key := s.key(relativePath)
	if _, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		s.logger.Error("Failed to delete object", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// GetFullPath returns the s3:// URI of the object
func (s *S3FileStorage) GetFullPath(relativePath string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key(relativePath))
}

func (s *S3FileStorage) key(relativePath string) string {
	clean := strings.TrimPrefix(path.Clean("/"+relativePath), "/")
	if s.prefix == "" {
		return clean
	}
	return path.Join(s.prefix, clean)
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

func contentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return "application/pdf"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}
