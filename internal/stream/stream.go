// Package stream composes a chunk reader, the record splitter and the record
// parser into a single forward-only sequence of events.
package stream

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"

	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/internal/parser"
	"github.com/jittakal/evexport/internal/reader"
	"github.com/jittakal/evexport/internal/splitter"
	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/source"
)

// DefaultMaxFailuresRetained bounds the failure log.
const DefaultMaxFailuresRetained = 1000

// State is the lifecycle state of a stream.
type State int32

const (
	StateUnopened State = iota
	StateStreaming
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateStreaming:
		return "streaming"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// MetricsRecorder receives stream counters. It is satisfied by observability.Metrics.
type MetricsRecorder interface {
	ObserveChunk(size int)
	IncEvents()
	IncParseFailures()
}

type nopMetrics struct{}

func (nopMetrics) ObserveChunk(int) {}
func (nopMetrics) IncEvents() {}
func (nopMetrics) IncParseFailures() {}

// Options configures a stream.
type Options struct {
	// Path is used in error messages and logs.
	Path string

	// MaxFailuresRetained caps FailureLog. The failure count is never capped.
	// Zero means DefaultMaxFailuresRetained, negative means retain none.
	MaxFailuresRetained int

	// OnFailure is called synchronously for every parse failure.
	OnFailure func(*event.ParseFailure)

	Logger  *slog.Logger
	Metrics MetricsRecorder
}

// Stream is a one-shot lazy sequence of events read from one source file.
type Stream struct {
	reader source.ChunkReader
	parser *parser.Parser
	opts   Options
	logger *slog.Logger

	state    atomic.Int32
	events   atomic.Int64
	failures atomic.Int64
	progress atomic.Int64

	mu         sync.Mutex
	failureLog []*event.ParseFailure
}

// New creates a stream over an open reader. The stream owns the reader and
// closes it when iteration ends, whether or not the file was exhausted.
func New(r source.ChunkReader, p *parser.Parser, opts Options) *Stream {
	if p == nil {
		p = parser.New(nil)
	}
	if opts.MaxFailuresRetained == 0 {
		opts.MaxFailuresRetained = DefaultMaxFailuresRetained
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}

	s := &Stream{
		reader: r,
		parser: p,
		opts:   opts,
		logger: opts.Logger.With("path", opts.Path),
	}
	s.progress.Store(r.Offset())
	return s
}

// Open opens path and returns a stream over it.
func Open(fs afero.Fs, path string, readerOpts reader.Options, alternate source.AlternateParser, opts Options) (*Stream, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	r, err := reader.Open(fs, path, readerOpts, opts.Logger)
	if err != nil {
		return nil, err
	}
	opts.Path = path
	return New(r, parser.New(alternate), opts), nil
}

// All returns the event sequence. Parse failures are elided from it and
// reported through Failures, FailureLog and Options.OnFailure.
//
// A non-nil error is always the last element: a chunk read failure, context
// cancellation, or ErrStreamConsumed when the sequence is ranged over more
// than once.
func (s *Stream) All(ctx context.Context) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		if !s.state.CompareAndSwap(int32(StateUnopened), int32(StateStreaming)) {
			yield(event.Event{}, apperrors.ErrStreamConsumed)
			return
		}
		defer s.finish()

		sp := splitter.New(s.reader.Offset())
		for {
			if err := ctx.Err(); err != nil {
				yield(event.Event{}, err)
				return
			}

			chunk, err := s.reader.Next()
			if errors.Is(err, io.EOF) {
				s.progress.Store(s.reader.Offset())
				s.emit(sp.Finish(), yield)
				return
			}
			if err != nil {
				yield(event.Event{}, s.wrapReadError(err))
				return
			}

			s.opts.Metrics.ObserveChunk(len(chunk))
			s.progress.Store(s.reader.Offset())
			if !s.emit(sp.Feed(chunk), yield) {
				return
			}
		}
	}
}

// emit parses records in order and yields the events. It reports false when
// the consumer stopped.
func (s *Stream) emit(records []event.RawRecord, yield func(event.Event, error) bool) bool {
	for _, rec := range records {
		ev, failure := s.parser.Parse(rec)
		if failure != nil {
			s.recordFailure(failure)
			continue
		}
		s.events.Add(1)
		s.opts.Metrics.IncEvents()
		if !yield(ev, nil) {
			return false
		}
	}
	return true
}

func (s *Stream) recordFailure(f *event.ParseFailure) {
	s.failures.Add(1)
	s.opts.Metrics.IncParseFailures()

	s.logger.Warn("skipping unparseable record",
		"line", f.Line,
		"offset", f.Offset,
		"reason", f.Reason,
	)

	if s.opts.MaxFailuresRetained > 0 {
		s.mu.Lock()
		if len(s.failureLog) < s.opts.MaxFailuresRetained {
			s.failureLog = append(s.failureLog, f)
		}
		s.mu.Unlock()
	}

	if s.opts.OnFailure != nil {
		s.opts.OnFailure(f)
	}
}

func (s *Stream) wrapReadError(err error) error {
	var readErr *apperrors.ChunkReadError
	if errors.As(err, &readErr) {
		return err
	}
	return &apperrors.ChunkReadError{Path: s.opts.Path, Offset: s.reader.Offset(), Err: err}
}

func (s *Stream) finish() {
	if err := s.reader.Close(); err != nil {
		s.logger.Warn("failed to close source file", "error", err)
	}
	s.state.Store(int32(StateExhausted))
	s.logger.Debug("stream finished",
		"events", s.events.Load(),
		"parse_failures", s.failures.Load(),
		"bytes", s.progress.Load(),
	)
}

// Close releases the reader without iterating. It is a no-op once iteration
// has started, since the iterator closes the reader itself.
func (s *Stream) Close() error {
	if s.state.CompareAndSwap(int32(StateUnopened), int32(StateExhausted)) {
		return s.reader.Close()
	}
	return nil
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

// Header returns the opaque preamble of the source file.
func (s *Stream) Header() event.Header {
	return s.reader.Header()
}

// Size returns the size of the source file in bytes.
func (s *Stream) Size() int64 {
	return s.reader.Size()
}

// Events returns the number of events yielded so far.
func (s *Stream) Events() int64 {
	return s.events.Load()
}

// Failures returns the number of records skipped as unparseable.
func (s *Stream) Failures() int64 {
	return s.failures.Load()
}

// BytesRead returns the number of source bytes consumed by the reader.
func (s *Stream) BytesRead() int64 {
	return s.progress.Load()
}

// FailureLog returns the retained parse failures in file order.
func (s *Stream) FailureLog() []*event.ParseFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*event.ParseFailure, len(s.failureLog))
	copy(out, s.failureLog)
	return out
}
