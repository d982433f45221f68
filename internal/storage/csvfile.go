package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/jittakal/evexport/internal/encoder"
	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Sink = (*CSVFileSink)(nil)

// CSVFileSink appends batches to a single CSV file.
//
// The header row is written only when the file did not exist or was empty.
// Columns are locked when the header is written, or read back from the
// header of an existing file. Keys that appear later have no column: they go
// to the overflow column when one is configured, otherwise they are dropped
// with one warning per key.
type CSVFileSink struct {
	fs      afero.Fs
	path    string
	enc     *encoder.CSVEncoder
	columns *encoder.Columns
	logger  *slog.Logger
	metrics MetricsCollector

	overflow string

	mu          sync.Mutex
	file        afero.File
	writeHeader bool
	dropped     map[string]struct{}
	closed      bool
}

// NewCSVFileSink creates a sink appending to path. A nil columns value means
// dynamic columns taken from the first batch.
func NewCSVFileSink(fs afero.Fs, path string, columns *encoder.Columns, logger *slog.Logger, metrics MetricsCollector) *CSVFileSink {
	if columns == nil {
		columns = encoder.DynamicColumns()
	}
	return &CSVFileSink{
		fs:      fs,
		path:    path,
		enc:     encoder.NewCSVEncoder("uncompressed"),
		columns: columns,
		logger:  logger.With("path", path),
		metrics: metricsOrNop(metrics),
		dropped: make(map[string]struct{}),
	}
}

// WithOverflowColumn names a trailing column that receives the fields with no
// column of their own as a JSON object. It must be set before the first
// Append. An existing file keeps its header and gets the overflow column only
// if its header already ends with name.
func (s *CSVFileSink) WithOverflowColumn(name string) *CSVFileSink {
	s.overflow = name
	return s
}

// Append writes events as rows, preceded by the header on the first write to
// a new file.
func (s *CSVFileSink) Append(ctx context.Context, events []event.Event) (*event.BatchStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, apperrors.ErrSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return &event.BatchStats{WrittenAt: time.Now()}, nil
	}

	startTime := time.Now()

	if s.file == nil {
		if err := s.open(); err != nil {
			s.metrics.IncStorageErrors("file", "open")
			return nil, err
		}
	}

	if !s.columns.Locked() {
		s.columns.Observe(events)
		s.columns.Lock()
		s.columns.WithOverflow(s.overflow)
		s.logger.Debug("csv columns locked", "columns", s.columns.Columns())
	}
	s.warnDropped(events)

	stats, err := s.enc.Encode(s.file, s.columns, events, s.writeHeader)
	if err != nil {
		s.metrics.IncStorageErrors("file", "write")
		return nil, &apperrors.StorageError{Operation: "append", Path: s.path, Err: err}
	}
	s.writeHeader = false

	duration := time.Since(startTime)
	s.logger.Debug("appended rows",
		"record_count", stats.RecordCount,
		"header_rows", stats.HeaderRows,
		"bytes", stats.SizeBytes,
		"duration_ms", duration.Milliseconds(),
	)

	s.metrics.IncFilesWritten("file", string(event.FormatCSV), "success")
	s.metrics.ObserveFileSize("file", string(event.FormatCSV), float64(stats.SizeBytes))
	s.metrics.ObserveStorageWriteDuration("file", duration.Seconds())

	return stats, nil
}

// open inspects the target and opens it for appending.
func (s *CSVFileSink) open() error {
	info, err := s.fs.Stat(s.path)
	switch {
	case err == nil && info.IsDir():
		return &apperrors.StorageError{Operation: "open", Path: s.path, Err: fmt.Errorf("is a directory")}
	case err == nil && info.Size() > 0:
		header, err := s.readHeader()
		if err != nil {
			return err
		}
		s.adoptHeader(header)
	case err == nil, errors.Is(err, os.ErrNotExist):
		s.writeHeader = true
	default:
		return &apperrors.StorageError{Operation: "stat", Path: s.path, Err: err}
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return &apperrors.StorageError{Operation: "mkdir", Path: dir, Err: err}
		}
	}

	f, err := s.fs.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return &apperrors.StorageError{Operation: "open", Path: s.path, Err: err}
	}
	s.file = f

	s.logger.Info("csv sink opened", "append", !s.writeHeader)
	return nil
}

func (s *CSVFileSink) readHeader() ([]string, error) {
	f, err := s.fs.Open(s.path)
	if err != nil {
		return nil, &apperrors.StorageError{Operation: "open", Path: s.path, Err: err}
	}
	defer f.Close()

	header, err := encoder.ReadHeader(f)
	if err != nil {
		return nil, &apperrors.StorageError{Operation: "read_header", Path: s.path, Err: err}
	}
	return header, nil
}

// adoptHeader locks columns to an existing file's header.
func (s *CSVFileSink) adoptHeader(header []string) {
	if s.columns.Explicit() {
		if !slices.Equal(header, s.columns.Columns()) {
			s.logger.Warn("existing csv header differs from configured columns",
				"header", header,
				"columns", s.columns.Columns(),
			)
		}
		return
	}
	if n := len(header); s.overflow != "" && n > 0 && header[n-1] == s.overflow {
		s.columns = encoder.FixedColumns(header[:n-1]).WithOverflow(s.overflow)
		return
	}
	s.columns = encoder.FixedColumns(header)
}

func (s *CSVFileSink) warnDropped(events []event.Event) {
	if s.columns.Overflow() != "" {
		return
	}
	for _, ev := range events {
		for _, key := range s.columns.Unknown(ev) {
			if _, seen := s.dropped[key]; seen {
				continue
			}
			s.dropped[key] = struct{}{}
			s.logger.Warn("dropping field with no csv column",
				"field", key,
				"line", ev.Line,
			)
		}
	}
}

// Columns returns the locked column names, or nil before the first write.
func (s *CSVFileSink) Columns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.columns.Locked() {
		return nil
	}
	return slices.Clone(s.columns.Columns())
}

// Dropped returns the keys dropped so far in sorted order.
func (s *CSVFileSink) Dropped() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.dropped))
	for k := range s.dropped {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Close closes the file.
func (s *CSVFileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.file == nil {
		return nil
	}
	if err := s.file.Close(); err != nil {
		return &apperrors.StorageError{Operation: "close", Path: s.path, Err: err}
	}
	return nil
}
