// Package event defines core event types for newline-delimited event logs.
//
// # Core Types
//
// RawRecord is a delimiter-bounded byte string cut from a source file,
// together with its position:
//
//	rec := event.RawRecord{
//	    Data:   []byte(`{"level":"info"}`),
//	    Line:   12,
//	    Offset: 4096,
//	    End:    4113,
//	}
//
// Event is the structured form of a record. Fields are whatever the record's
// JSON object contains:
//
//	ev := event.Event{
//	    Fields: map[string]any{"level": "info"},
//	    Line:   12,
//	}
//	level, ok := ev.Get("level")
//
// # Diagnostics
//
// ParseFailure describes a record that neither the JSON parser nor the
// alternate-format parser could interpret. Failures are collected, never
// raised:
//
//	f := &event.ParseFailure{Line: 3, Offset: 40, Reason: "invalid character"}
//	fmt.Println(f.Error())
//
// ExportSummary reports totals for a finished export run.
//
// # File Formats
//
//	event.FormatCSV      // Delimited text, appendable
//	event.FormatParquet  // Columnar, one file per batch
//	event.FormatAvro     // Row-based OCF, one file per batch
package event
