package event

import (
	"errors"
	"testing"
)

func TestEvent_Get(t *testing.T) {
	ev := Event{Fields: map[string]any{"a": "1", "b": nil}}

	tests := []struct {
		name   string
		key    string
		want   any
		wantOK bool
	}{
		{name: "present", key: "a", want: "1", wantOK: true},
		{name: "present null", key: "b", want: nil, wantOK: true},
		{name: "missing", key: "c", want: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ev.Get(tt.key)
			if ok != tt.wantOK {
				t.Errorf("Get(%q) ok = %v, want %v", tt.key, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Get(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestEvent_Position(t *testing.T) {
	ev := Event{Line: 7, Offset: 120}
	if got := ev.Position(); got != "7:120" {
		t.Errorf("Position() = %v, want 7:120", got)
	}
}

func TestParseFailure_Error(t *testing.T) {
	var err error = &ParseFailure{Line: 3, Offset: 40, Reason: "unexpected end of JSON input"}

	want := "parse failure at line 3 (offset 40): unexpected end of JSON input"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var pf *ParseFailure
	if !errors.As(err, &pf) {
		t.Fatal("errors.As should match *ParseFailure")
	}
	if pf.Line != 3 {
		t.Errorf("Line = %d, want 3", pf.Line)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    FileFormat
		wantErr bool
	}{
		{name: "csv", input: "csv", want: FormatCSV},
		{name: "parquet", input: "parquet", want: FormatParquet},
		{name: "avro", input: "avro", want: FormatAvro},
		{name: "empty defaults to csv", input: "", want: FormatCSV},
		{name: "unknown", input: "xlsx", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkEvent_Position(b *testing.B) {
	ev := Event{Line: 1 << 20, Offset: 1 << 30}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ev.Position()
	}
}
