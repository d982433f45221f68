package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.ObjectStore = (*AzureStore)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Prefix        string
	Endpoint      string
}

// Validate checks required settings.
func (c AzureConfig) Validate() error {
	if c.AccountName == "" {
		return &apperrors.ConfigError{Key: "storage.azure.account_name", Reason: "account name is required"}
	}
	if c.AccountKey == "" {
		return &apperrors.ConfigError{Key: "storage.azure.account_key", Reason: "account key is required"}
	}
	if c.ContainerName == "" {
		return &apperrors.ConfigError{Key: "storage.azure.container", Reason: "container is required"}
	}
	return nil
}

// ConnectionString builds the storage account connection string.
func (c AzureConfig) ConnectionString() string {
	if c.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			c.AccountName, c.AccountKey, c.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		c.AccountName, c.AccountKey)
}

// AzureStore implements storage.ObjectStore for Azure Blob Storage.
type AzureStore struct {
	client *azblob.Client
	cfg    AzureConfig
	logger *slog.Logger
}

// NewAzureStore creates a new Azure Blob store.
func NewAzureStore(cfg AzureConfig, logger *slog.Logger) (*AzureStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	logger.Info("Azure store created",
		"container", cfg.ContainerName,
		"prefix", cfg.Prefix,
		"account", cfg.AccountName,
	)

	return &AzureStore{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Put uploads r as a block blob at container/prefix/key.
func (s *AzureStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	blobPath := ObjectKey(s.cfg.Prefix, key)
	counter := &countingReader{r: r}
	startTime := time.Now()

	_, err := s.client.UploadStream(ctx, s.cfg.ContainerName, blobPath, counter, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return 0, &apperrors.StorageError{Operation: "upload", Path: "wasbs://" + s.cfg.ContainerName + "/" + blobPath, Err: err}
	}

	s.logger.Debug("uploaded blob to Azure",
		"container", s.cfg.ContainerName,
		"blob", blobPath,
		"bytes", counter.n,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)

	return counter.n, nil
}

// Name returns the backend name.
func (s *AzureStore) Name() string {
	return "azure"
}

// Close closes the Azure store.
func (s *AzureStore) Close() error {
	s.logger.Debug("closing Azure store")
	return nil
}
