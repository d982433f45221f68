package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.ObjectStore = (*GCSStore)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	Prefix               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// Validate checks required settings.
func (c GCSConfig) Validate() error {
	if c.Bucket == "" {
		return &apperrors.ConfigError{Key: "storage.gcs.bucket", Reason: "bucket is required"}
	}
	if c.CredentialsFile != "" && c.CredentialsJSON != "" {
		return &apperrors.ConfigError{Key: "storage.gcs.credentials_file", Reason: "set either a credentials file or JSON, not both"}
	}
	return nil
}

// clientOptions returns the client options for the configured authentication method.
func (c GCSConfig) clientOptions() ([]option.ClientOption, string) {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}

	switch {
	case c.UseDefaultCredential:
		return opts, "default"
	case c.CredentialsJSON != "":
		return append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON))), "json"
	case c.CredentialsFile != "":
		return append(opts, option.WithCredentialsFile(c.CredentialsFile)), "file"
	default:
		return opts, "default"
	}
}

// GCSStore implements storage.ObjectStore for Google Cloud Storage.
// It supports service account file, JSON and default credentials.
type GCSStore struct {
	client *gcs.Client
	cfg    GCSConfig
	logger *slog.Logger
}

// NewGCSStore creates a new Google Cloud Storage store.
func NewGCSStore(ctx context.Context, cfg GCSConfig, logger *slog.Logger) (*GCSStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts, auth := cfg.clientOptions()
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logger.Info("GCS store created",
		"bucket", cfg.Bucket,
		"prefix", cfg.Prefix,
		"project_id", cfg.ProjectID,
		"auth", auth,
	)

	return &GCSStore{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Put streams r to bucket/prefix/key.
func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	objectPath := ObjectKey(s.cfg.Prefix, key)
	startTime := time.Now()

	w := s.client.Bucket(s.cfg.Bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType

	n, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return 0, &apperrors.StorageError{Operation: "upload", Path: "gs://" + s.cfg.Bucket + "/" + objectPath, Err: err}
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return 0, &apperrors.StorageError{Operation: "close", Path: "gs://" + s.cfg.Bucket + "/" + objectPath, Err: err}
	}

	s.logger.Debug("uploaded object to GCS",
		"bucket", s.cfg.Bucket,
		"object", objectPath,
		"bytes", n,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return n, nil
}

// Name returns the backend name.
func (s *GCSStore) Name() string {
	return "gcs"
}

// Close closes the GCS client.
func (s *GCSStore) Close() error {
	s.logger.Debug("closing GCS store")
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
