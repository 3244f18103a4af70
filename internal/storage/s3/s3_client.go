// Package s3 stores raw batch documents in an S3 compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"aforo/internal/config"
	"aforo/internal/domain"
	"aforo/internal/port"
)

// Store implements port.ObjectStorage on S3.
type Store struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
	maxBytes   int64
}

var _ port.ObjectStorage = (*Store)(nil)

// NewStore builds a Store from cfg. A custom endpoint (MinIO, LocalStack)
// switches to path-style addressing.
func NewStore(cfg *config.S3Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Store{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     cfg.Bucket,
		maxBytes:   cfg.MaxFileSizeMB * 1024 * 1024,
	}, nil
}

func (s *Store) Upload(ctx context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(input.Bucket),
		Key:         aws.String(input.Key),
		Body:        input.Body,
		ContentType: aws.String(input.ContentType),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 upload %s: %w", input.Key, err)
	}
	return &port.UploadOutput{Location: result.Location, ETag: aws.ToString(result.ETag)}, nil
}

// Download fetches an object with the concurrent range downloader. Objects
// larger than the configured upload limit are refused.
func (s *Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapNotFound("s3 head", key, err)
	}
	size := aws.ToInt64(head.ContentLength)
	if s.maxBytes > 0 && size > s.maxBytes {
		return nil, fmt.Errorf("s3 download %s: %d bytes: %w", key, size, domain.ErrFileTooLarge)
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, size))
	n, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapNotFound("s3 download", key, err)
	}
	return buf.Bytes()[:n], nil
}

func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) GetPresignedURL(ctx context.Context, bucket, key string, expirySeconds int64) (string, error) {
	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(time.Duration(expirySeconds)*time.Second))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", key, err)
	}
	return result.URL, nil
}

// PingContext checks that the configured bucket is reachable.
func (s *Store) PingContext(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		zap.L().Warn("s3.Store: bucket not reachable", zap.String("bucket", s.bucket), zap.Error(err))
		return fmt.Errorf("s3 head bucket %s: %w", s.bucket, err)
	}
	return nil
}

func mapNotFound(op, key string, err error) error {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return fmt.Errorf("%s %s: %w", op, key, domain.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}
