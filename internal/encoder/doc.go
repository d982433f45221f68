// Package encoder provides tabular encoding of event batches.
//
// Events carry no fixed schema, so every encoder works against a Table that
// projects events onto an ordered column set. Columns supplies the three
// projections used by the exporter:
//
//	cols := encoder.DynamicColumns()          // union of keys, first-seen order
//	cols := encoder.FixedColumns(header)      // locked, e.g. from an existing CSV
//	cols, err := encoder.ExplicitColumns([]string{"sig=alert.signature"})
//
// Explicit columns are gjson paths evaluated against the event text, which
// lets nested values be flattened into their own columns.
//
// # Supported Formats
//
//   - CSV: header row plus one row per event; appendable when uncompressed
//   - Parquet: columnar, every column an optional string
//   - Avro: OCF with one nullable string field per column
//
// # Encoder Factory
//
//	factory := encoder.NewFactory(event.FormatParquet, "snappy")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stats, err := enc.Encode(w, cols, events, true)
//
// Missing keys and JSON nulls become empty CSV cells and nulls in Parquet
// and Avro. Objects and arrays are rendered as compact JSON text.
package encoder
