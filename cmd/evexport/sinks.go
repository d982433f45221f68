package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/jittakal/evexport/internal/config/dto"
	"github.com/jittakal/evexport/internal/encoder"
	"github.com/jittakal/evexport/internal/kafka"
	"github.com/jittakal/evexport/internal/observability"
	"github.com/jittakal/evexport/internal/storage"
	"github.com/jittakal/evexport/pkg/event"
	pkgstorage "github.com/jittakal/evexport/pkg/storage"
)

// newSink creates the sink for export.output and returns it with its metrics
// label. An empty output yields a nil sink: events are only counted.
func newSink(ctx context.Context, fs afero.Fs, cfg *dto.ApplicationConfig, logger *slog.Logger, metrics *observability.Metrics) (pkgstorage.Sink, string, error) {
	if cfg.Export.Output == "" {
		return nil, "none", nil
	}

	loc, err := storage.ParseLocation(cfg.Export.Output)
	if err != nil {
		return nil, "", err
	}

	switch loc.Scheme {
	case "kafka":
		sink, err := kafka.NewSink(kafkaConfig(cfg, loc.Bucket), loc.Key, cfg.Source.Path, cfg.Application.Name, logger, metrics)
		if err != nil {
			return nil, "", err
		}
		return sink, "kafka", nil
	case "postgres":
		sink, err := storage.NewPostgresSink(ctx, loc.Raw, cfg.Postgres.Table, cfg.Source.Path, logger, metrics)
		if err != nil {
			return nil, "", err
		}
		return sink, "postgres", nil
	}

	format, err := event.ParseFormat(strings.ToLower(cfg.Export.Format))
	if err != nil {
		return nil, "", err
	}

	// A single .csv target is appended to; everything else gets one part per batch.
	if loc.Scheme == "file" && format == event.FormatCSV && strings.EqualFold(filepath.Ext(loc.Key), ".csv") {
		columns := encoder.DynamicColumns()
		if len(cfg.Export.Columns) > 0 {
			if columns, err = encoder.ExplicitColumns(cfg.Export.Columns); err != nil {
				return nil, "", err
			}
		}
		sink := storage.NewCSVFileSink(fs, loc.Key, columns, logger, metrics).WithOverflowColumn(cfg.Export.OverflowColumn)
		return sink, "csv_file", nil
	}

	enc, err := encoder.NewFactory(format, cfg.Export.Compression).CreateEncoder()
	if err != nil {
		return nil, "", err
	}

	var columns *encoder.Columns
	if len(cfg.Export.Columns) > 0 {
		if columns, err = encoder.ExplicitColumns(cfg.Export.Columns); err != nil {
			return nil, "", err
		}
	}

	store, err := newObjectStore(ctx, fs, loc, cfg, logger)
	if err != nil {
		return nil, "", err
	}

	router := storage.NewRouter("", cfg.Source.Path, "", time.Now())
	sink, err := storage.NewPartSink(store, router, storage.PartSinkConfig{
		Encoder: enc,
		Columns: columns,
		TempFs:  fs,
	}, logger, metrics)
	if err != nil {
		store.Close()
		return nil, "", err
	}
	logger.Info("export run started", "run_id", router.RunID())
	return sink, store.Name(), nil
}

// newObjectStore creates the part file store for loc. The location key is
// the prefix every part is written under.
func newObjectStore(ctx context.Context, fs afero.Fs, loc storage.Location, cfg *dto.ApplicationConfig, logger *slog.Logger) (pkgstorage.ObjectStore, error) {
	switch loc.Scheme {
	case "file":
		return storage.NewLocalStore(fs, loc.Key, logger)
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       loc.Bucket,
			Prefix:       loc.Key,
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
			SSEEnabled:   cfg.Storage.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.Storage.S3.SSEKMSKeyID,
		}, logger)
	case "gs":
		return storage.NewGCSStore(ctx, storage.GCSConfig{
			Bucket:               loc.Bucket,
			Prefix:               loc.Key,
			ProjectID:            cfg.Storage.GCS.ProjectID,
			CredentialsFile:      cfg.Storage.GCS.CredentialsFile,
			CredentialsJSON:      cfg.Storage.GCS.CredentialsJSON,
			Endpoint:             cfg.Storage.GCS.Endpoint,
			UseDefaultCredential: cfg.Storage.GCS.UseDefaultCredential,
		}, logger)
	case "wasbs":
		return storage.NewAzureStore(storage.AzureConfig{
			AccountName:   azureAccount(loc, cfg.Storage.Azure.AccountName),
			AccountKey:    cfg.Storage.Azure.AccountKey,
			ContainerName: loc.Bucket,
			Prefix:        loc.Key,
			Endpoint:      cfg.Storage.Azure.Endpoint,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported part store scheme: %s", loc.Scheme)
	}
}

// azureAccount returns the configured account name, or the one embedded in
// a wasbs://container@account.blob.core.windows.net URI.
func azureAccount(loc storage.Location, configured string) string {
	if configured != "" {
		return configured
	}
	_, rest, _ := strings.Cut(loc.Raw, "://")
	host, _, _ := strings.Cut(rest, "/")
	_, account, found := strings.Cut(host, "@")
	if !found {
		return ""
	}
	account, _, _ = strings.Cut(account, ".")
	return account
}

// redactLocation masks a password embedded in a location URI, such as a
// postgres DSN, so it can be logged.
func redactLocation(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	return u.Redacted()
}

// newRejectSink creates the sink for export.rejects, or nil when unset.
func newRejectSink(fs afero.Fs, cfg *dto.ApplicationConfig, logger *slog.Logger) (pkgstorage.RejectSink, error) {
	if cfg.Export.Rejects == "" {
		return nil, nil
	}

	loc, err := storage.ParseLocation(cfg.Export.Rejects)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case "file":
		rejects, err := storage.NewRejectFile(fs, loc.Key)
		if err != nil {
			return nil, err
		}
		logger.Info("writing rejected lines to file", "path", loc.Key)
		return rejects, nil
	case "kafka":
		return kafka.NewRejectPublisher(kafkaConfig(cfg, loc.Bucket), loc.Key, cfg.Source.Path, cfg.Application.Name, logger)
	default:
		return nil, fmt.Errorf("unsupported rejects scheme: %s", loc.Scheme)
	}
}

func kafkaConfig(cfg *dto.ApplicationConfig, brokers string) kafka.Config {
	return kafka.Config{
		BootstrapServers:      strings.Split(brokers, ","),
		ClientID:              cfg.Application.Name,
		SecurityProtocol:      cfg.Kafka.SecurityProtocol,
		SASLMechanism:         cfg.Kafka.SASLMechanism,
		SASLUsername:          cfg.Kafka.SASLUsername,
		SASLPassword:          cfg.Kafka.SASLPassword,
		AWSRegion:             cfg.Kafka.AWSRegion,
		Compression:           cfg.Kafka.Compression,
		TLSInsecureSkipVerify: cfg.Kafka.TLSInsecureSkipVerify,
		MaxMessageBytes:       cfg.Kafka.MaxMessageBytes,
	}
}
