package encoder

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jittakal/evexport/pkg/encoder"
	"github.com/jittakal/evexport/pkg/event"
)

// codecs lists the accepted compressions per format; the first entry is the default.
var codecs = map[event.FileFormat][]string{
	event.FormatCSV:     {"uncompressed", "gzip", "lz4"},
	event.FormatParquet: {"snappy", "uncompressed", "gzip", "lz4", "zstd"},
	event.FormatAvro:    {"deflate", "uncompressed", "snappy", "gzip"},
}

// Factory creates encoders for one format and compression.
type Factory struct {
	format      event.FileFormat
	compression string
}

// NewFactory creates a new encoder factory.
// An empty compression selects the format's default; "none" is an alias of
// "uncompressed". Names are case-insensitive.
func NewFactory(format event.FileFormat, compression string) *Factory {
	return &Factory{
		format:      format,
		compression: normalizeCompression(format, compression),
	}
}

func normalizeCompression(format event.FileFormat, name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return DefaultCompression(format)
	case "none":
		return "uncompressed"
	default:
		return name
	}
}

// Compression returns the resolved compression name.
func (f *Factory) Compression() string {
	return f.compression
}

// CreateEncoder creates an encoder for the configured format.
func (f *Factory) CreateEncoder() (encoder.Encoder, error) {
	supported, ok := codecs[f.format]
	if !ok {
		return nil, fmt.Errorf("unsupported file format: %s", f.format)
	}
	if !slices.Contains(supported, f.compression) {
		return nil, fmt.Errorf("unsupported compression %q for format %s (supported: %s)",
			f.compression, f.format, strings.Join(supported, ", "))
	}

	switch f.format {
	case event.FormatParquet:
		return NewParquetEncoder(f.compression), nil
	case event.FormatAvro:
		return NewAvroEncoder(f.compression)
	default:
		return NewCSVEncoder(f.compression), nil
	}
}

// SupportedFormats returns the formats a factory can build, in a stable order.
func SupportedFormats() []event.FileFormat {
	return []event.FileFormat{event.FormatCSV, event.FormatParquet, event.FormatAvro}
}

// SupportedCompressions returns the compressions accepted for format,
// default first. It is nil for unknown formats.
func SupportedCompressions(format event.FileFormat) []string {
	return slices.Clone(codecs[format])
}

// DefaultCompression returns the compression used when none is configured.
func DefaultCompression(format event.FileFormat) string {
	if c, ok := codecs[format]; ok {
		return c[0]
	}
	return "uncompressed"
}
