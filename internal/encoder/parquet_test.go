package encoder

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/jittakal/evexport/pkg/event"
)

// readParquet returns the rows of an encoded file keyed by column name.
// Null cells are absent from a row's map.
func readParquet(t *testing.T, data []byte) (*parquet.Schema, []map[string]string) {
	t.Helper()

	r := parquet.NewReader(bytes.NewReader(data))
	defer r.Close()

	schema := r.Schema()
	leaves := schema.Columns()

	var out []map[string]string
	rows := make([]parquet.Row, 16)
	for {
		n, err := r.ReadRows(rows)
		for _, row := range rows[:n] {
			m := make(map[string]string)
			for _, v := range row {
				if !v.IsNull() {
					m[leaves[v.Column()][0]] = v.String()
				}
			}
			out = append(out, m)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadRows() error = %v", err)
		}
	}
	return schema, out
}

func TestParquetEncoder_WriteAndRead(t *testing.T) {
	encoder := NewParquetEncoder("snappy")
	cols := DynamicColumns()
	events := sampleEvents()
	cols.Observe(events)

	var buf bytes.Buffer
	stats, err := encoder.Encode(&buf, cols, events, true)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if stats.RecordCount != 3 {
		t.Errorf("RecordCount = %d, want 3", stats.RecordCount)
	}
	if stats.HeaderRows != 0 {
		t.Errorf("HeaderRows = %d, want 0", stats.HeaderRows)
	}
	if stats.SizeBytes != int64(buf.Len()) {
		t.Errorf("SizeBytes = %d, want %d", stats.SizeBytes, buf.Len())
	}

	schema, rows := readParquet(t, buf.Bytes())

	if got := len(schema.Fields()); got != cols.Len() {
		t.Errorf("schema has %d fields, want %d", got, cols.Len())
	}
	if len(rows) != 3 {
		t.Fatalf("read %d rows, want 3", len(rows))
	}

	if rows[0]["event_type"] != "flow" || rows[0]["src_port"] != "443" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1]["event_type"] != "alert" {
		t.Errorf("row 1 event_type = %q, want alert", rows[1]["event_type"])
	}
	if rows[2]["note"] != `a,b "quoted"` {
		t.Errorf("row 2 note = %q", rows[2]["note"])
	}
}

func TestParquetEncoder_NullHandling(t *testing.T) {
	encoder := NewParquetEncoder("uncompressed")
	cols := DynamicColumns()
	events := sampleEvents()
	cols.Observe(events)

	var buf bytes.Buffer
	if _, err := encoder.Encode(&buf, cols, events, false); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	_, rows := readParquet(t, buf.Bytes())

	if _, ok := rows[0]["alert"]; ok {
		t.Error("missing key should be null")
	}
	if _, ok := rows[2]["dns"]; ok {
		t.Error("JSON null should be null")
	}
	if _, ok := rows[1]["src_port"]; ok {
		t.Error("missing key should be null")
	}
}

func TestParquetEncoder_CompressionCodecs(t *testing.T) {
	codecs := []string{"snappy", "gzip", "lz4", "zstd", "uncompressed"}

	for _, codec := range codecs {
		t.Run(codec, func(t *testing.T) {
			encoder := NewParquetEncoder(codec)
			cols := FixedColumns([]string{"event_type", "ts"})

			var buf bytes.Buffer
			if _, err := encoder.Encode(&buf, cols, sampleEvents(), false); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			_, rows := readParquet(t, buf.Bytes())
			if len(rows) != 3 {
				t.Errorf("read %d rows, want 3", len(rows))
			}
		})
	}
}

func TestParquetEncoder_EncodeEmpty(t *testing.T) {
	encoder := NewParquetEncoder("snappy")

	var buf bytes.Buffer
	if _, err := encoder.Encode(&buf, FixedColumns([]string{"a"}), []event.Event{}, false); err == nil {
		t.Error("expected error for empty records")
	}
	if _, err := encoder.Encode(&buf, FixedColumns(nil), sampleEvents(), false); err == nil {
		t.Error("expected error for empty columns")
	}
}

func TestSchema(t *testing.T) {
	schema := Schema([]string{"b", "a"})

	leaves := schema.Columns()
	if len(leaves) != 2 {
		t.Fatalf("len(Columns()) = %d, want 2", len(leaves))
	}
	for _, f := range schema.Fields() {
		if !f.Optional() {
			t.Errorf("field %s should be optional", f.Name())
		}
	}
}

func TestParquetEncoder_Metadata(t *testing.T) {
	encoder := NewParquetEncoder("snappy")

	if encoder.FileExtension() != ".parquet" {
		t.Errorf("FileExtension() = %v, want .parquet", encoder.FileExtension())
	}
	if encoder.Format() != event.FormatParquet {
		t.Errorf("Format() = %v, want parquet", encoder.Format())
	}
	if encoder.ContentType() == "" {
		t.Error("expected content type")
	}
}

func TestCompressionCodec(t *testing.T) {
	tests := []string{"snappy", "SNAPPY", "gzip", "lz4", "zstd", "uncompressed", "none", "unknown"}

	for _, compression := range tests {
		t.Run(compression, func(t *testing.T) {
			if compressionCodec(compression) == nil {
				t.Errorf("compressionCodec(%s) returned nil option", compression)
			}
		})
	}
}
