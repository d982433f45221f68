// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrFileNotFound     = errors.New("file not found")
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrBufferFull       = errors.New("buffer is full")
	ErrStreamConsumed   = errors.New("event stream already consumed")
	ErrSinkClosed       = errors.New("sink is closed")
	ErrNoRecords        = errors.New("no records to write")
	ErrReaderClosed     = errors.New("chunk reader is closed")
)

// ChunkReadError represents an I/O failure while reading a chunk.
// It is fatal for the current pass.
type ChunkReadError struct {
	Path   string
	Offset int64
	Err    error
}

func (e *ChunkReadError) Error() string {
	return fmt.Sprintf("chunk read error: path=%s offset=%d: %v", e.Path, e.Offset, e.Err)
}

func (e *ChunkReadError) Unwrap() error {
	return e.Err
}

// ExportError represents a sink write failure.
// Batches written before Batch are not rolled back.
type ExportError struct {
	Sink  string
	Batch int
	Rows  int
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error: sink=%s batch=%d rows=%d: %v", e.Sink, e.Batch, e.Rows, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// StorageError represents a storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Key, e.Reason)
}
