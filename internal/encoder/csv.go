package encoder

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/jittakal/evexport/pkg/encoder"
	"github.com/jittakal/evexport/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*CSVEncoder)(nil)

// CSVEncoder implements encoder.Encoder for comma separated values.
// Null and missing values are written as empty cells. Uncompressed output can
// be appended to an existing file; compressed output is one stream per batch.
type CSVEncoder struct {
	compression string
}

// NewCSVEncoder creates a CSV encoder. Supported compressions are
// "uncompressed", "gzip" and "lz4".
func NewCSVEncoder(compression string) *CSVEncoder {
	return &CSVEncoder{compression: strings.ToLower(compression)}
}

// Encode writes events as CSV rows.
func (e *CSVEncoder) Encode(w io.Writer, table encoder.Table, events []event.Event, withHeader bool) (*event.BatchStats, error) {
	counter := &countingWriter{w: w}

	out, finish := e.compress(counter)
	cw := csv.NewWriter(out)

	stats := &event.BatchStats{}
	if withHeader {
		if err := cw.Write(table.Columns()); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		stats.HeaderRows = 1
	}

	row := make([]string, len(table.Columns()))
	for i, ev := range events {
		for col := range row {
			row[col], _ = table.Cell(ev, col)
		}
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush rows: %w", err)
	}
	if err := finish(); err != nil {
		return nil, fmt.Errorf("failed to close %s writer: %w", e.compression, err)
	}

	stats.RecordCount = len(events)
	stats.SizeBytes = counter.n
	stats.WrittenAt = time.Now()
	return stats, nil
}

func (e *CSVEncoder) compress(w io.Writer) (io.Writer, func() error) {
	switch e.compression {
	case "gzip":
		gz := gzip.NewWriter(w)
		return gz, gz.Close
	case "lz4":
		zw := lz4.NewWriter(w)
		return zw, zw.Close
	default:
		return w, func() error { return nil }
	}
}

// Compressed reports whether output is wrapped in a compression stream.
func (e *CSVEncoder) Compressed() bool {
	return e.compression == "gzip" || e.compression == "lz4"
}

// Format returns the file format.
func (e *CSVEncoder) Format() event.FileFormat {
	return event.FormatCSV
}

// FileExtension returns the file extension.
func (e *CSVEncoder) FileExtension() string {
	switch e.compression {
	case "gzip":
		return ".csv.gz"
	case "lz4":
		return ".csv.lz4"
	default:
		return ".csv"
	}
}

// ContentType returns the MIME type.
func (e *CSVEncoder) ContentType() string {
	switch e.compression {
	case "gzip":
		return "application/gzip"
	case "lz4":
		return "application/x-lz4"
	default:
		return "text/csv"
	}
}

// ReadHeader returns the first record of a CSV stream, or nil for an empty one.
func ReadHeader(r io.Reader) ([]string, error) {
	header, err := csv.NewReader(r).Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	return header, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
