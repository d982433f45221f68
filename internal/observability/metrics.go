package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Stream metrics
	ChunksRead    prometheus.Counter
	BytesRead     prometheus.Counter
	EventsParsed  prometheus.Counter
	ParseFailures prometheus.Counter
	Progress      prometheus.Gauge

	// Export metrics
	BatchesExported *prometheus.CounterVec
	RowsExported    *prometheus.CounterVec
	BatchDuration   *prometheus.HistogramVec
	RejectsWritten  *prometheus.CounterVec

	// Storage metrics
	FilesWritten         *prometheus.CounterVec
	StorageWriteDuration *prometheus.HistogramVec
	FileSize             *prometheus.HistogramVec
	StorageErrors        *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Stream metrics
		ChunksRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "evexport_chunks_read_total",
			Help: "Total number of chunks read from the source file",
		}),
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "evexport_bytes_read_total",
			Help: "Total number of bytes read from the source file",
		}),
		EventsParsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "evexport_events_parsed_total",
			Help: "Total number of records parsed into events",
		}),
		ParseFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "evexport_parse_failures_total",
			Help: "Total number of records no parser could interpret",
		}),
		Progress: factory.NewGauge(prometheus.GaugeOpts{
			Name: "evexport_progress_ratio",
			Help: "Fraction of the source file processed",
		}),

		// Export metrics
		BatchesExported: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evexport_batches_exported_total",
				Help: "Total number of batches appended to a sink",
			},
			[]string{"sink", "status"},
		),
		RowsExported: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evexport_rows_exported_total",
				Help: "Total number of rows appended to a sink",
			},
			[]string{"sink"},
		),
		BatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evexport_batch_duration_seconds",
				Help:    "Duration of batch appends",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"sink"},
		),
		RejectsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evexport_rejects_written_total",
				Help: "Total number of parse failures sent to the rejects sink",
			},
			[]string{"status"},
		),

		// Storage metrics
		FilesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evexport_files_written_total",
				Help: "Total number of files or appends written to storage",
			},
			[]string{"backend", "format", "status"},
		),
		StorageWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evexport_storage_write_duration_seconds",
				Help:    "Duration of complete storage writes including encoding",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		FileSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "evexport_file_size_bytes",
				Help:    "Size of files written to storage",
				Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10), // 64KB to 16GB
			},
			[]string{"backend", "format"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evexport_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"backend", "error_type"},
		),
	}
}

// ObserveChunk counts one chunk of n bytes.
func (m *Metrics) ObserveChunk(n int) {
	m.ChunksRead.Inc()
	m.BytesRead.Add(float64(n))
}

// IncEvents increments the parsed events counter.
func (m *Metrics) IncEvents() {
	m.EventsParsed.Inc()
}

// IncParseFailures increments the parse failures counter.
func (m *Metrics) IncParseFailures() {
	m.ParseFailures.Inc()
}

// SetProgress sets the progress gauge.
func (m *Metrics) SetProgress(ratio float64) {
	m.Progress.Set(ratio)
}

// IncBatchesExported increments batches exported counter.
func (m *Metrics) IncBatchesExported(sink, status string) {
	m.BatchesExported.WithLabelValues(sink, status).Inc()
}

// AddRowsExported adds to the rows exported counter.
func (m *Metrics) AddRowsExported(sink string, rows int) {
	m.RowsExported.WithLabelValues(sink).Add(float64(rows))
}

// ObserveBatchDuration observes batch append duration.
func (m *Metrics) ObserveBatchDuration(sink string, seconds float64) {
	m.BatchDuration.WithLabelValues(sink).Observe(seconds)
}

// IncRejects increments the rejects counter.
func (m *Metrics) IncRejects(status string) {
	m.RejectsWritten.WithLabelValues(status).Inc()
}

// IncFilesWritten increments files written counter.
func (m *Metrics) IncFilesWritten(backend, format, status string) {
	m.FilesWritten.WithLabelValues(backend, format, status).Inc()
}

// ObserveFileSize observes file size.
func (m *Metrics) ObserveFileSize(backend, format string, size float64) {
	m.FileSize.WithLabelValues(backend, format).Observe(size)
}

// ObserveStorageWriteDuration observes storage write duration.
func (m *Metrics) ObserveStorageWriteDuration(backend string, duration float64) {
	m.StorageWriteDuration.WithLabelValues(backend).Observe(duration)
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}
