// Package encoder implements tabular encoders for event batches.
package encoder

import (
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/jittakal/evexport/pkg/encoder"
	"github.com/jittakal/evexport/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// ParquetEncoder implements encoder.Encoder for Apache Parquet columnar format.
// The schema is derived from the table: every column is an optional UTF-8
// string, so events with missing keys become nulls.
// Supports multiple compression codecs: SNAPPY (default), GZIP, LZ4, ZSTD.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Schema builds the Parquet schema for a set of columns.
func Schema(columns []string) *parquet.Schema {
	group := make(parquet.Group, len(columns))
	for _, name := range columns {
		group[name] = parquet.Optional(parquet.String())
	}
	return parquet.NewSchema("event", group)
}

// Encode writes events as one Parquet file. Parquet has no header row, so
// withHeader is ignored.
func (e *ParquetEncoder) Encode(w io.Writer, table encoder.Table, events []event.Event, _ bool) (*event.BatchStats, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}
	columns := table.Columns()
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns to encode")
	}

	schema := Schema(columns)

	// Leaf columns of a group are ordered by name; map them back to the table.
	leaves := schema.Columns()
	tableIndex := make(map[string]int, len(columns))
	for i, name := range columns {
		tableIndex[name] = i
	}
	order := make([]int, len(leaves))
	for leaf, path := range leaves {
		order[leaf] = tableIndex[path[0]]
	}

	counter := &countingWriter{w: w}
	writer := parquet.NewWriter(
		counter,
		schema,
		compressionCodec(e.compressionName),
		parquet.CreatedBy("evexport", "1.0", "0"),
	)

	rows := make([]parquet.Row, len(events))
	for i, ev := range events {
		row := make(parquet.Row, len(leaves))
		for leaf, col := range order {
			if text, ok := table.Cell(ev, col); ok {
				row[leaf] = parquet.ByteArrayValue([]byte(text)).Level(0, 1, leaf)
			} else {
				row[leaf] = parquet.NullValue().Level(0, 0, leaf)
			}
		}
		rows[i] = row
	}

	if _, err := writer.WriteRows(rows); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write records: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	return &event.BatchStats{
		RecordCount: len(events),
		SizeBytes:   counter.n,
		WrittenAt:   time.Now(),
	}, nil
}

// Format returns the file format.
func (e *ParquetEncoder) Format() event.FileFormat {
	return event.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}

// ContentType returns the MIME type.
func (e *ParquetEncoder) ContentType() string {
	return "application/vnd.apache.parquet"
}
