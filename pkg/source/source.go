// Package source defines interfaces for reading event log files.
//
// This package provides abstractions for chunked reading of a source file
// and for plugging in parsers for record formats other than JSON.
package source

import (
	"github.com/jittakal/evexport/pkg/event"
)

// ChunkReader reads a source file sequentially in fixed-size chunks.
type ChunkReader interface {
	// Header returns the opaque preamble read once when the reader was opened.
	Header() event.Header

	// Next returns the next chunk, or io.EOF once the file is exhausted.
	// The returned slice is only valid until the following call to Next.
	Next() ([]byte, error)

	// Offset returns the number of bytes handed out so far.
	Offset() int64

	// Size returns the size of the source file in bytes.
	Size() int64

	// Close releases the file handle. It is safe to call more than once.
	Close() error
}

// AlternateParser interprets records that are not valid JSON.
type AlternateParser interface {
	// Parse returns Parsed(fields) when it understands the record,
	// Unrecognized otherwise.
	Parse(record []byte) AlternateResult
}

// AlternateResult is the tagged result of an AlternateParser.
type AlternateResult struct {
	Fields     map[string]any
	Recognized bool
}

// Parsed wraps fields decoded by an alternate parser.
func Parsed(fields map[string]any) AlternateResult {
	return AlternateResult{Fields: fields, Recognized: true}
}

// Unrecognized reports that a record is not in the parser's format.
func Unrecognized() AlternateResult {
	return AlternateResult{}
}

// AlternateParserFunc adapts a function to the AlternateParser interface.
type AlternateParserFunc func(record []byte) AlternateResult

// Parse calls f(record).
func (f AlternateParserFunc) Parse(record []byte) AlternateResult {
	return f(record)
}
