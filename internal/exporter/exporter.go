// Package exporter drains an event stream into a tabular sink in fixed-size batches.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/jittakal/evexport/internal/buffer"
	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/storage"
)

// DefaultBatchSize is the number of rows per flush when none is configured.
const DefaultBatchSize = 10000

// ProgressReporter receives the byte position of the export after every event.
type ProgressReporter interface {
	Update(processed, total int64)
}

// MetricsRecorder defines the metrics an export reports.
type MetricsRecorder interface {
	IncBatchesExported(sink, status string)
	AddRowsExported(sink string, rows int)
	ObserveBatchDuration(sink string, seconds float64)
}

type nopMetrics struct{}

func (nopMetrics) IncBatchesExported(string, string) {}
func (nopMetrics) AddRowsExported(string, int) {}
func (nopMetrics) ObserveBatchDuration(string, float64) {}

type nopProgress struct{}

func (nopProgress) Update(int64, int64) {}

// Source is an event stream that also reports its position.
type Source interface {
	All(ctx context.Context) iter.Seq2[event.Event, error]
	Size() int64
	BytesRead() int64
	Failures() int64
}

// Options configures an Exporter.
type Options struct {
	// BatchSize is the number of rows per flush. Zero means DefaultBatchSize.
	BatchSize int

	// MaxBatchBytes additionally bounds a batch by estimated event size. Zero disables it.
	MaxBatchBytes int64

	// SinkName labels logs and metrics. Defaults to "none" without a sink.
	SinkName string

	// TotalBytes is the source size passed to the progress reporter.
	TotalBytes int64

	Progress ProgressReporter
	Logger   *slog.Logger
	Metrics  MetricsRecorder
}

// Exporter pulls events, batches them and appends each full batch to a sink.
// A nil sink only counts events.
type Exporter struct {
	sink storage.Sink
	opts Options
}

// New creates an exporter.
func New(sink storage.Sink, opts Options) (*Exporter, error) {
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchSize < 0 {
		return nil, &apperrors.ConfigError{Key: "export.batch_size", Reason: fmt.Sprintf("must be positive, got %d", opts.BatchSize)}
	}
	if opts.MaxBatchBytes < 0 {
		return nil, &apperrors.ConfigError{Key: "export.max_batch_bytes", Reason: "must not be negative"}
	}
	if opts.SinkName == "" {
		opts.SinkName = "none"
	}
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	return &Exporter{sink: sink, opts: opts}, nil
}

// RunStream exports src and completes the summary with the stream's byte
// count and parse failures.
func (e *Exporter) RunStream(ctx context.Context, src Source) (*event.ExportSummary, error) {
	if e.opts.TotalBytes == 0 {
		e.opts.TotalBytes = src.Size()
	}
	summary, err := e.Run(ctx, src.All(ctx))
	summary.BytesProcessed = src.BytesRead()
	summary.ParseFailures = src.Failures()
	if err == nil {
		e.opts.Progress.Update(summary.BytesProcessed, e.opts.TotalBytes)
	}
	return summary, err
}

// Run consumes seq until it is exhausted or yields an error.
//
// A batch is appended as soon as it is full and the remainder is appended at
// the end. When an append fails the run stops with an *ExportError; batches
// already written stay written. An error from seq stops the run without
// flushing the partial batch.
func (e *Exporter) Run(ctx context.Context, seq iter.Seq2[event.Event, error]) (*event.ExportSummary, error) {
	startTime := time.Now()
	summary := &event.ExportSummary{}
	batch := buffer.New(e.opts.BatchSize, e.opts.MaxBatchBytes)
	logger := e.opts.Logger.With("sink", e.opts.SinkName)

	done := func(err error) (*event.ExportSummary, error) {
		summary.Duration = time.Since(startTime)
		return summary, err
	}

	for ev, err := range seq {
		if err != nil {
			return done(err)
		}

		if err := batch.Add(ev); err != nil {
			if !errors.Is(err, apperrors.ErrBufferFull) {
				return done(err)
			}
			if err := e.flush(ctx, batch, summary, logger); err != nil {
				return done(err)
			}
			if err := batch.Add(ev); err != nil {
				return done(err)
			}
		}

		summary.Events++
		summary.BytesProcessed = ev.End
		e.opts.Progress.Update(ev.End, e.opts.TotalBytes)

		if batch.IsFull() {
			if err := e.flush(ctx, batch, summary, logger); err != nil {
				return done(err)
			}
		}
	}

	if !batch.IsEmpty() {
		if err := e.flush(ctx, batch, summary, logger); err != nil {
			return done(err)
		}
	}

	return done(nil)
}

func (e *Exporter) flush(ctx context.Context, batch *buffer.Batch, summary *event.ExportSummary, logger *slog.Logger) error {
	events := batch.Drain()
	if e.sink == nil {
		return nil
	}

	seq := summary.Batches + 1
	startTime := time.Now()

	stats, err := e.sink.Append(ctx, events)
	if err != nil {
		e.opts.Metrics.IncBatchesExported(e.opts.SinkName, "error")
		logger.Error("failed to export batch",
			"batch", seq,
			"rows", len(events),
			"error", err,
		)
		return &apperrors.ExportError{Sink: e.opts.SinkName, Batch: seq, Rows: len(events), Err: err}
	}

	duration := time.Since(startTime)
	summary.Batches = seq
	summary.RowsWritten += int64(stats.RecordCount)
	summary.HeaderRows += stats.HeaderRows

	e.opts.Metrics.IncBatchesExported(e.opts.SinkName, "success")
	e.opts.Metrics.AddRowsExported(e.opts.SinkName, stats.RecordCount)
	e.opts.Metrics.ObserveBatchDuration(e.opts.SinkName, duration.Seconds())

	logger.Debug("exported batch",
		"batch", seq,
		"rows", stats.RecordCount,
		"header_rows", stats.HeaderRows,
		"bytes", stats.SizeBytes,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}
