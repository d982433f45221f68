package encoder

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/evexport/pkg/encoder"
	"github.com/jittakal/evexport/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder implements encoder.Encoder for Apache Avro OCF (Object Container File).
// The record schema is derived from the table: one nullable string field per
// column. Field names are sanitized to Avro rules; the original column name is
// kept in the field's doc.
type AvroEncoder struct {
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
// "deflate" and "snappy" compress OCF blocks; "gzip" wraps the whole file.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	c := strings.ToLower(compression)
	switch c {
	case "", "uncompressed", "none", "gzip", "deflate", "snappy":
	default:
		return nil, fmt.Errorf("unsupported avro compression: %s", compression)
	}
	return &AvroEncoder{compression: c}, nil
}

type avroField struct {
	Name    string `json:"name"`
	Type    []any  `json:"type"`
	Default any    `json:"default"`
	Doc     string `json:"doc,omitempty"`
}

type avroRecord struct {
	Type      string      `json:"type"`
	Name      string      `json:"name"`
	Namespace string      `json:"namespace"`
	Fields    []avroField `json:"fields"`
}

// AvroSchema returns the Avro schema for a set of columns and the field name
// used for each column.
func AvroSchema(columns []string) (string, []string, error) {
	names := AvroFieldNames(columns)
	rec := avroRecord{
		Type:      "record",
		Name:      "Event",
		Namespace: "io.evexport",
		Fields:    make([]avroField, len(columns)),
	}
	for i, col := range columns {
		rec.Fields[i] = avroField{
			Name: names[i],
			Type: []any{"null", "string"},
			Doc:  col,
		}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal avro schema: %w", err)
	}
	return string(b), names, nil
}

// AvroFieldNames maps column names to unique valid Avro names.
func AvroFieldNames(columns []string) []string {
	taken := make(map[string]bool, len(columns))
	out := make([]string, len(columns))
	for i, col := range columns {
		base := sanitizeAvroName(col)
		name := base
		for n := 1; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		taken[name] = true
		out[i] = name
	}
	return out
}

func sanitizeAvroName(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// Encode writes events as one Avro OCF file. Avro has no header row, so
// withHeader is ignored.
func (e *AvroEncoder) Encode(w io.Writer, table encoder.Table, events []event.Event, _ bool) (*event.BatchStats, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	schema, names, err := AvroSchema(table.Columns())
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	counter := &countingWriter{w: w}
	var writer io.Writer = counter
	var gzipWriter *gzip.Writer
	if e.compression == "gzip" {
		gzipWriter = gzip.NewWriter(counter)
		writer = gzipWriter
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               writer,
		Codec:           codec,
		CompressionName: e.blockCompression(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	records := make([]any, len(events))
	for i, ev := range events {
		records[i] = toAvroMap(table, names, ev)
	}
	if err := ocfWriter.Append(records); err != nil {
		return nil, fmt.Errorf("failed to write records: %w", err)
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}

	return &event.BatchStats{
		RecordCount: len(events),
		SizeBytes:   counter.n,
		WrittenAt:   time.Now(),
	}, nil
}

func (e *AvroEncoder) blockCompression() string {
	switch e.compression {
	case "deflate":
		return goavro.CompressionDeflateLabel
	case "snappy":
		return goavro.CompressionSnappyLabel
	default:
		return goavro.CompressionNullLabel
	}
}

// toAvroMap converts an event to its Avro map representation.
// Nullable fields use goavro.Union.
func toAvroMap(table encoder.Table, names []string, ev event.Event) map[string]any {
	m := make(map[string]any, len(names))
	for i, name := range names {
		if text, ok := table.Cell(ev, i); ok {
			m[name] = goavro.Union("string", text)
		} else {
			m[name] = nil
		}
	}
	return m
}

// Format returns the file format.
func (e *AvroEncoder) Format() event.FileFormat {
	return event.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.compression == "gzip" {
		return ".avro.gz"
	}
	return ".avro"
}

// ContentType returns the MIME type.
func (e *AvroEncoder) ContentType() string {
	if e.compression == "gzip" {
		return "application/gzip"
	}
	return "application/avro"
}
