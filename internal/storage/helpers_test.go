package storage

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/jittakal/evexport/pkg/event"
)

// mockMetricsCollector implements MetricsCollector for testing
type mockMetricsCollector struct {
	mu sync.Mutex

	filesWritten       int
	fileSizes          []float64
	storageDurations   []float64
	storageErrors      int
	lastFileStatus     string
	lastBackend        string
	lastFormat         string
	lastErrorBackend   string
	lastErrorOperation string
}

func (m *mockMetricsCollector) IncFilesWritten(backend, format, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filesWritten++
	m.lastBackend = backend
	m.lastFormat = format
	m.lastFileStatus = status
}

func (m *mockMetricsCollector) ObserveFileSize(_, _ string, size float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fileSizes = append(m.fileSizes, size)
}

func (m *mockMetricsCollector) ObserveStorageWriteDuration(_ string, duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storageDurations = append(m.storageDurations, duration)
}

func (m *mockMetricsCollector) IncStorageErrors(backend, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storageErrors++
	m.lastErrorBackend = backend
	m.lastErrorOperation = operation
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureLogger returns a logger writing JSON lines into the returned builder.
func captureLogger() (*slog.Logger, *strings.Builder) {
	var sb strings.Builder
	return slog.New(slog.NewJSONHandler(&sb, &slog.HandlerOptions{Level: slog.LevelDebug})), &sb
}

func testEvent(raw string, line int64) event.Event {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		panic(fmt.Sprintf("bad test event %q: %v", raw, err))
	}
	return event.Event{Fields: fields, Raw: raw, Line: line}
}
