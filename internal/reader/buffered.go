package reader

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"

	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/source"
)

var _ source.ChunkReader = (*BufferedReader)(nil)

// BufferedReader reads a file sequentially through one reusable chunk buffer.
type BufferedReader struct {
	path   string
	file   afero.File
	buf    []byte
	header event.Header
	size   int64
	offset int64
	eof    bool
	closed bool
}

func openBuffered(fs afero.Fs, path string, size int64, opts Options) (*BufferedReader, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}

	header, err := readHeader(f, opts.HeaderSize)
	if err != nil {
		f.Close()
		return nil, err
	}

	r := &BufferedReader{
		path:   path,
		file:   f,
		buf:    make([]byte, opts.ChunkSize),
		header: header,
		size:   size,
	}

	if opts.SkipHeader {
		if _, err := f.Seek(int64(len(header)), io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to skip header: %w", err)
		}
		r.offset = int64(len(header))
	}

	return r, nil
}

// Header returns the preamble read at open time.
func (r *BufferedReader) Header() event.Header {
	return r.header
}

// Next returns the next chunk or io.EOF.
func (r *BufferedReader) Next() ([]byte, error) {
	if r.closed {
		return nil, apperrors.ErrReaderClosed
	}
	if r.eof {
		return nil, io.EOF
	}

	n, err := io.ReadFull(r.file, r.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		r.eof = true
		if n == 0 {
			return nil, io.EOF
		}
	default:
		return nil, &apperrors.ChunkReadError{Path: r.path, Offset: r.offset, Err: err}
	}

	r.offset += int64(n)
	return r.buf[:n], nil
}

// Offset returns the number of bytes handed out so far.
func (r *BufferedReader) Offset() int64 {
	return r.offset
}

// Size returns the file size.
func (r *BufferedReader) Size() int64 {
	return r.size
}

// Close closes the underlying file.
func (r *BufferedReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}
