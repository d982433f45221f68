package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/jittakal/evexport/internal/encoder"
	apperrors "github.com/jittakal/evexport/internal/errors"
	pkgencoder "github.com/jittakal/evexport/pkg/encoder"
	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Sink = (*PartSink)(nil)

// PartSinkConfig configures a PartSink.
type PartSinkConfig struct {
	Encoder pkgencoder.Encoder

	// Columns fixes the columns of every part. When nil, each part gets the
	// union of keys of its own batch.
	Columns *encoder.Columns

	// TempFs and TempDir hold parts while they are encoded.
	// Defaults are the OS filesystem and its temp directory.
	TempFs  afero.Fs
	TempDir string
}

// PartSink writes every batch as a separate part file and uploads it to an
// object store. Each part is self-describing: it carries its own header or schema.
type PartSink struct {
	store   storage.ObjectStore
	router  storage.Router
	cfg     PartSinkConfig
	logger  *slog.Logger
	metrics MetricsCollector

	mu     sync.Mutex
	seq    int
	parts  []string
	closed bool
}

// NewPartSink creates a sink that uploads parts to store under keys chosen by router.
func NewPartSink(store storage.ObjectStore, router storage.Router, cfg PartSinkConfig, logger *slog.Logger, metrics MetricsCollector) (*PartSink, error) {
	if cfg.Encoder == nil {
		return nil, fmt.Errorf("part sink requires an encoder")
	}
	if cfg.TempFs == nil {
		cfg.TempFs = afero.NewOsFs()
	}

	logger.Info("part sink created",
		"backend", store.Name(),
		"format", cfg.Encoder.Format(),
		"extension", cfg.Encoder.FileExtension(),
	)

	return &PartSink{
		store:   store,
		router:  router,
		cfg:     cfg,
		logger:  logger,
		metrics: metricsOrNop(metrics),
	}, nil
}

// Append encodes events into a part file and uploads it.
func (s *PartSink) Append(ctx context.Context, events []event.Event) (*event.BatchStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, apperrors.ErrSinkClosed
	}
	if len(events) == 0 {
		return &event.BatchStats{WrittenAt: time.Now()}, nil
	}

	startTime := time.Now()
	backend := s.store.Name()
	format := string(s.cfg.Encoder.Format())

	columns := s.cfg.Columns
	if columns == nil {
		columns = encoder.DynamicColumns()
		columns.Observe(events)
	}

	tmp, err := afero.TempFile(s.cfg.TempFs, s.cfg.TempDir, "evexport-*"+s.cfg.Encoder.FileExtension())
	if err != nil {
		s.metrics.IncStorageErrors(backend, "temp_file")
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		s.cfg.TempFs.Remove(tmp.Name())
	}()

	stats, err := s.cfg.Encoder.Encode(tmp, columns, events, true)
	if err != nil {
		s.metrics.IncStorageErrors(backend, "encode")
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		s.metrics.IncStorageErrors(backend, "seek")
		return nil, fmt.Errorf("failed to rewind temp file: %w", err)
	}

	s.seq++
	key := s.router.Route(s.seq, s.cfg.Encoder.FileExtension())

	uploaded, err := s.store.Put(ctx, key, tmp, s.cfg.Encoder.ContentType())
	if err != nil {
		s.metrics.IncStorageErrors(backend, "upload")
		s.metrics.IncFilesWritten(backend, format, "error")
		return nil, err
	}
	s.parts = append(s.parts, key)

	duration := time.Since(startTime)

	s.logger.Info("wrote part",
		"backend", backend,
		"key", key,
		"record_count", stats.RecordCount,
		"columns", columns.Len(),
		"file_size", uploaded,
		"total_duration_ms", duration.Milliseconds(),
	)

	s.metrics.IncFilesWritten(backend, format, "success")
	s.metrics.ObserveFileSize(backend, format, float64(stats.SizeBytes))
	s.metrics.ObserveStorageWriteDuration(backend, duration.Seconds())

	return stats, nil
}

// Parts returns the keys written so far.
func (s *PartSink) Parts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.parts))
	copy(out, s.parts)
	return out
}

// Close closes the underlying store.
func (s *PartSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.store.Close()
}
