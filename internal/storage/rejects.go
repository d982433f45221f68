package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"

	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.RejectSink = (*RejectFile)(nil)

// RejectFile appends parse failures to a file as newline-delimited JSON,
// one object per failure with its line, offset, reason and raw text.
type RejectFile struct {
	path string

	mu     sync.Mutex
	file   afero.File
	enc    *json.Encoder
	count  int64
	closed bool
}

// NewRejectFile opens path for appending, creating it and its directory if needed.
func NewRejectFile(fs afero.Fs, path string) (*RejectFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, &apperrors.StorageError{Operation: "mkdir", Path: dir, Err: err}
		}
	}
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &apperrors.StorageError{Operation: "open", Path: path, Err: err}
	}
	return &RejectFile{
		path: path,
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Reject writes one failure.
func (r *RejectFile) Reject(_ context.Context, failure *event.ParseFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return apperrors.ErrSinkClosed
	}
	if err := r.enc.Encode(failure); err != nil {
		return &apperrors.StorageError{Operation: "write", Path: r.path, Err: err}
	}
	r.count++
	return nil
}

// Count returns the number of failures written.
func (r *RejectFile) Count() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close closes the file.
func (r *RejectFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}
