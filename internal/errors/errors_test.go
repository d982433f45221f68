package errors

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrFileNotFound", ErrFileNotFound},
		{"ErrInvalidChunkSize", ErrInvalidChunkSize},
		{"ErrBufferFull", ErrBufferFull},
		{"ErrStreamConsumed", ErrStreamConsumed},
		{"ErrSinkClosed", ErrSinkClosed},
		{"ErrNoRecords", ErrNoRecords},
		{"ErrReaderClosed", ErrReaderClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("%s should not be nil", tt.name)
			}
			if tt.err.Error() == "" {
				t.Errorf("%s should have an error message", tt.name)
			}
		})
	}
}

func TestChunkReadError(t *testing.T) {
	err := &ChunkReadError{Path: "/data/run.eve", Offset: 4096, Err: io.ErrUnexpectedEOF}

	if !strings.Contains(err.Error(), "offset=4096") {
		t.Errorf("Error() = %q, should contain offset", err.Error())
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("ChunkReadError should wrap base error")
	}
}

func TestExportError(t *testing.T) {
	baseErr := errors.New("disk full")
	err := &ExportError{Sink: "csv", Batch: 3, Rows: 10000, Err: baseErr}

	if err.Error() != "export error: sink=csv batch=3 rows=10000: disk full" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, baseErr) {
		t.Error("ExportError should wrap base error")
	}

	var exportErr *ExportError
	wrapped := errors.Join(errors.New("context"), err)
	if !errors.As(wrapped, &exportErr) {
		t.Fatal("errors.As should find ExportError")
	}
	if exportErr.Batch != 3 {
		t.Errorf("Batch = %d, want 3", exportErr.Batch)
	}
}

func TestStorageError(t *testing.T) {
	baseErr := errors.New("access denied")
	err := &StorageError{Operation: "upload", Path: "s3://bucket/key", Err: baseErr}

	if err.Error() == "" {
		t.Error("StorageError should have an error message")
	}
	if !errors.Is(err, baseErr) {
		t.Error("StorageError should wrap base error")
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Key: "export.batch_size", Reason: "must be positive"}
	want := "config error: export.batch_size: must be positive"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
