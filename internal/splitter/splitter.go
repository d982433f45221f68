// Package splitter cuts chunked input into newline-delimited records.
package splitter

import (
	"bytes"

	"github.com/jittakal/evexport/pkg/event"
)

// Delimiter separates records.
const Delimiter = '\n'

// Splitter turns a sequence of chunks into complete records.
// The trailing fragment of each chunk is carried over and prepended to the
// next one, so a record is only emitted once its delimiter has been seen,
// except for the final record, which Finish emits without one.
//
// A Splitter is not safe for concurrent use.
type Splitter struct {
	remainder []byte
	remStart  int64
	lines     int64
	finished  bool
}

// New creates a splitter whose first chunk starts at byte offset start.
func New(start int64) *Splitter {
	return &Splitter{remStart: start}
}

// Feed splits chunk, prefixed by the carried remainder, into complete records.
// Records are trimmed of surrounding whitespace; empty records are dropped.
// The chunk is not retained, so callers may reuse it.
func (s *Splitter) Feed(chunk []byte) []event.RawRecord {
	if s.finished || len(chunk) == 0 {
		return nil
	}

	// No delimiter: the remainder only grows. Appending in place keeps a
	// record spanning many chunks linear in its size.
	if bytes.IndexByte(chunk, Delimiter) < 0 {
		s.remainder = append(s.remainder, chunk...)
		return nil
	}

	buf := make([]byte, 0, len(s.remainder)+len(chunk))
	buf = append(buf, s.remainder...)
	buf = append(buf, chunk...)

	var records []event.RawRecord
	pos := 0
	for {
		i := bytes.IndexByte(buf[pos:], Delimiter)
		if i < 0 {
			break
		}
		s.lines++
		start := s.remStart + int64(pos)
		if data := bytes.TrimSpace(buf[pos : pos+i]); len(data) > 0 {
			records = append(records, event.RawRecord{
				Data:   data,
				Line:   s.lines,
				Offset: start,
				End:    start + int64(i) + 1,
			})
		}
		pos += i + 1
	}

	s.remStart += int64(pos)
	s.remainder = append([]byte(nil), buf[pos:]...)
	return records
}

// Finish emits the final remainder as one last record when it is not blank.
// Later calls to Feed or Finish return nothing.
func (s *Splitter) Finish() []event.RawRecord {
	if s.finished {
		return nil
	}
	s.finished = true

	rem := s.remainder
	s.remainder = nil
	if len(rem) == 0 {
		return nil
	}

	s.lines++
	data := bytes.TrimSpace(rem)
	if len(data) == 0 {
		return nil
	}
	return []event.RawRecord{{
		Data:   data,
		Line:   s.lines,
		Offset: s.remStart,
		End:    s.remStart + int64(len(rem)),
	}}
}

// Pending returns the number of bytes carried over to the next chunk.
func (s *Splitter) Pending() int {
	return len(s.remainder)
}
