package reader

import (
	"fmt"
	"io"

	"golang.org/x/exp/mmap"

	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/source"
)

var _ source.ChunkReader = (*MmapReader)(nil)

// MmapReader reads a memory-mapped file one chunk at a time.
// Pages are faulted in by the kernel as chunks are copied out, so resident
// memory stays proportional to the chunk size.
type MmapReader struct {
	path   string
	ra     *mmap.ReaderAt
	buf    []byte
	header event.Header
	offset int64
	closed bool
}

func openMmap(path string, opts Options) (*MmapReader, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to map source file: %w", err)
	}

	header, err := readHeader(ra, opts.HeaderSize)
	if err != nil {
		ra.Close()
		return nil, err
	}

	r := &MmapReader{
		path:   path,
		ra:     ra,
		buf:    make([]byte, opts.ChunkSize),
		header: header,
	}
	if opts.SkipHeader {
		r.offset = int64(len(header))
	}
	return r, nil
}

// Header returns the preamble read at open time.
func (r *MmapReader) Header() event.Header {
	return r.header
}

// Next returns the next chunk or io.EOF.
func (r *MmapReader) Next() ([]byte, error) {
	if r.closed {
		return nil, apperrors.ErrReaderClosed
	}
	if r.offset >= int64(r.ra.Len()) {
		return nil, io.EOF
	}

	n, err := r.ra.ReadAt(r.buf, r.offset)
	if err != nil && err != io.EOF {
		return nil, &apperrors.ChunkReadError{Path: r.path, Offset: r.offset, Err: err}
	}
	if n == 0 {
		return nil, io.EOF
	}

	r.offset += int64(n)
	return r.buf[:n], nil
}

// Offset returns the number of bytes handed out so far.
func (r *MmapReader) Offset() int64 {
	return r.offset
}

// Size returns the mapped length.
func (r *MmapReader) Size() int64 {
	return int64(r.ra.Len())
}

// Close unmaps the file.
func (r *MmapReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.ra.Close()
}
