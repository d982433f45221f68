// Package encoder defines interfaces for encoding event batches to tabular formats.
package encoder

import (
	"io"

	"github.com/jittakal/evexport/pkg/event"
)

// Table projects events onto an ordered set of columns.
type Table interface {
	// Columns returns the column names in output order.
	Columns() []string

	// Cell returns the text of column i for ev. It reports false when the
	// value is missing or null.
	Cell(ev event.Event, i int) (string, bool)
}

// Encoder encodes a batch of events as rows of a table.
type Encoder interface {
	// Encode writes the events as rows of table.
	// A header row is written only when withHeader is true and the format has one.
	Encode(w io.Writer, table Table, events []event.Event, withHeader bool) (*event.BatchStats, error)

	// Format returns the file format this encoder produces.
	Format() event.FileFormat

	// FileExtension returns the file extension (e.g., ".csv", ".parquet").
	FileExtension() string

	// ContentType returns the MIME type used when uploading encoded files.
	ContentType() string
}
