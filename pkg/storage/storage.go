// Package storage defines interfaces for tabular sinks.
//
// This package provides abstractions for appending event batches to a
// destination: a local CSV file, part files on a filesystem or object store,
// a Kafka topic or a database table.
package storage

import (
	"context"
	"io"

	"github.com/jittakal/evexport/pkg/event"
)

// Sink appends event batches to a tabular destination.
type Sink interface {
	// Append writes one batch and returns statistics for it.
	// Batches written before a failing call are not rolled back.
	Append(ctx context.Context, events []event.Event) (*event.BatchStats, error)

	// Close flushes and releases resources.
	Close() error
}

// ObjectStore uploads finished part files.
type ObjectStore interface {
	// Put stores the content of r under key.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)

	// Name returns the backend name used in logs and metrics ("file", "s3", ...).
	Name() string

	// Close releases resources.
	Close() error
}

// Router determines object keys for exported part files.
type Router interface {
	// Route returns the key of the seq-th part (1-based) with the given extension.
	Route(seq int, ext string) string
}

// RejectSink receives records that could not be parsed.
type RejectSink interface {
	// Reject records one parse failure.
	Reject(ctx context.Context, failure *event.ParseFailure) error

	// Close flushes and releases resources.
	Close() error
}
