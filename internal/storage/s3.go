package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.ObjectStore = (*S3Store)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// Validate checks required settings.
func (c S3Config) Validate() error {
	if c.Bucket == "" {
		return &apperrors.ConfigError{Key: "storage.s3.bucket", Reason: "bucket is required"}
	}
	if c.Region == "" {
		return &apperrors.ConfigError{Key: "storage.s3.region", Reason: "region is required"}
	}
	if c.SSEKMSKeyID != "" && !c.SSEEnabled {
		return &apperrors.ConfigError{Key: "storage.s3.sse_kms_key_id", Reason: "requires sse_enabled"}
	}
	return nil
}

// S3Store implements storage.ObjectStore for AWS S3.
// It uses the transfer manager for multipart uploads and supports
// server-side encryption (SSE-S3 or SSE-KMS).
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *slog.Logger
}

// NewS3Store creates an S3 store using the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StoreWithClient(client, cfg, logger), nil
}

// NewS3StoreWithClient creates an S3 store around an existing client.
func NewS3StoreWithClient(client *s3.Client, cfg S3Config, logger *slog.Logger) *S3Store {
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB parts
		u.Concurrency = 5
	})

	logger.Info("S3 store created",
		"bucket", cfg.Bucket,
		"prefix", cfg.Prefix,
		"region", cfg.Region,
		"sse_enabled", cfg.SSEEnabled,
	)

	return &S3Store{
		client:   client,
		uploader: uploader,
		cfg:      cfg,
		logger:   logger,
	}
}

// Put uploads r to bucket/prefix/key.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	objectKey := ObjectKey(s.cfg.Prefix, key)
	counter := &countingReader{r: r}
	startTime := time.Now()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(objectKey),
		Body:        counter,
		ContentType: aws.String(contentType),
	}

	if s.cfg.SSEEnabled {
		if s.cfg.SSEKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(s.cfg.SSEKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	result, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return 0, &apperrors.StorageError{Operation: "upload", Path: "s3://" + s.cfg.Bucket + "/" + objectKey, Err: err}
	}

	s.logger.Debug("uploaded object to S3",
		"bucket", s.cfg.Bucket,
		"key", objectKey,
		"bytes", counter.n,
		"location", result.Location,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return counter.n, nil
}

// Name returns the backend name.
func (s *S3Store) Name() string {
	return "s3"
}

// Close closes the S3 store.
func (s *S3Store) Close() error {
	s.logger.Debug("closing S3 store")
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
