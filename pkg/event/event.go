// Package event defines core event types and interfaces for event log processing.
//
// This package contains the public API shared by the reader, parser, stream
// and exporter packages: raw records cut from a source file, the structured
// events decoded from them, and the diagnostics produced along the way.
package event

import (
	"fmt"
	"time"
)

// RawRecord is one delimiter-bounded record cut from a source file.
type RawRecord struct {
	// Data is the record content with surrounding whitespace trimmed.
	Data []byte

	// Line is the 1-based line number of the record in the source file.
	Line int64

	// Offset is the byte offset of the first byte of the line.
	Offset int64

	// End is the byte offset just past the line, including its delimiter when present.
	End int64
}

// Event is the structured form of one record.
// Fields are determined by the record's content; no schema is imposed.
type Event struct {
	Fields map[string]any

	// Raw is the decoded text the fields were parsed from.
	Raw string

	Line   int64
	Offset int64
	End    int64
}

// Get returns the value of a top-level field.
func (e Event) Get(key string) (any, bool) {
	v, ok := e.Fields[key]
	return v, ok
}

// Position returns the record position in the format "line:offset".
func (e Event) Position() string {
	return fmt.Sprintf("%d:%d", e.Line, e.Offset)
}

// ParseFailure describes a record that could not be interpreted by any parser.
// It is reported, never raised: the record is skipped and the stream continues.
type ParseFailure struct {
	Line   int64  `json:"line"`
	Offset int64  `json:"offset"`
	Reason string `json:"reason"`
	Raw    string `json:"raw"`
}

// Error implements the error interface.
func (f *ParseFailure) Error() string {
	return fmt.Sprintf("parse failure at line %d (offset %d): %s", f.Line, f.Offset, f.Reason)
}

// Header is the opaque fixed-size preamble read from the start of a source file.
// Its structure is not interpreted.
type Header []byte

// BatchStats contains statistics about a written batch.
type BatchStats struct {
	RecordCount int
	SizeBytes   int64
	HeaderRows  int
	WrittenAt   time.Time
}

// ExportSummary describes a finished export run.
type ExportSummary struct {
	Events         int64
	Batches        int
	RowsWritten    int64
	HeaderRows     int
	BytesProcessed int64
	ParseFailures  int64
	Duration       time.Duration
}

// FileFormat represents the tabular output format.
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatAvro    FileFormat = "avro"
)

// ParseFormat converts a format name to a FileFormat.
func ParseFormat(name string) (FileFormat, error) {
	switch FileFormat(name) {
	case FormatCSV, FormatParquet, FormatAvro:
		return FileFormat(name), nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported file format: %s", name)
	}
}
