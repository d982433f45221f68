// Package reader implements chunked readers for event log files.
package reader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/source"
)

const (
	// DefaultChunkSize is the number of bytes requested per read.
	DefaultChunkSize = 1024 * 1024

	// DefaultHeaderSize is the length of the opaque preamble.
	DefaultHeaderSize = 16
)

// Mode selects the reader implementation.
type Mode string

const (
	ModeBuffered Mode = "buffered"
	ModeMmap     Mode = "mmap"
)

// Options configures a chunk reader.
type Options struct {
	ChunkSize  int
	HeaderSize int
	// SkipHeader excludes the preamble from the chunks handed out.
	// By default the header is only peeked and stays part of the record data.
	SkipHeader bool
	Mode       Mode
}

// withDefaults fills zero values. A negative chunk size is left alone so that
// validation can reject it.
func (o Options) withDefaults() Options {
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.HeaderSize == 0 {
		o.HeaderSize = DefaultHeaderSize
	}
	if o.Mode == "" {
		o.Mode = ModeBuffered
	}
	return o
}

// Open opens path for chunked reading.
// It fails with ErrFileNotFound before anything is read when the path does not exist.
func Open(fs afero.Fs, path string, opts Options, logger *slog.Logger) (source.ChunkReader, error) {
	opts = opts.withDefaults()
	if opts.ChunkSize < 0 {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrInvalidChunkSize, opts.ChunkSize)
	}
	if opts.HeaderSize < 0 {
		return nil, fmt.Errorf("invalid header size: %d", opts.HeaderSize)
	}

	info, err := fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path is a directory: %s", path)
	}

	var r source.ChunkReader
	switch opts.Mode {
	case ModeBuffered:
		r, err = openBuffered(fs, path, info.Size(), opts)
	case ModeMmap:
		if _, ok := fs.(*afero.OsFs); !ok {
			return nil, fmt.Errorf("mmap reader requires the OS filesystem")
		}
		r, err = openMmap(path, opts)
	default:
		return nil, fmt.Errorf("unsupported reader mode: %s", opts.Mode)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("source file opened",
		"path", path,
		"size", info.Size(),
		"mode", opts.Mode,
		"chunk_size", opts.ChunkSize,
		"header_size", len(r.Header()),
		"skip_header", opts.SkipHeader,
	)

	return r, nil
}

// readHeader reads up to size bytes from the start of the file.
// Files shorter than the header yield a short header, not an error.
func readHeader(ra io.ReaderAt, size int) (event.Header, error) {
	h := make([]byte, size)
	n, err := ra.ReadAt(h, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	return event.Header(h[:n]), nil
}
