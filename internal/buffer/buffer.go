// Package buffer implements fixed-capacity event batching for export.
package buffer

import (
	"fmt"
	"sync"
	"time"

	"github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/buffer"
	"github.com/jittakal/evexport/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ buffer.Buffer = (*Batch)(nil)

// Batch accumulates up to a fixed number of events, optionally bounded by
// their textual size as well. It is handed to a sink and cleared on every flush,
// so memory stays bounded regardless of the source file size.
type Batch struct {
	events         []event.Event
	maxRecords     int
	maxSizeBytes   int64
	currentSize    int64
	firstWriteTime time.Time
	lastWriteTime  time.Time
	mu             sync.RWMutex
}

// Stats describes the current batch contents.
type Stats struct {
	RecordCount    int
	SizeBytes      int64
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}

// New creates a batch holding at most maxRecords events.
// A positive maxSizeBytes also bounds the summed length of the events' text.
func New(maxRecords int, maxSizeBytes int64) *Batch {
	if maxRecords <= 0 {
		maxRecords = 1
	}
	return &Batch{
		events:       make([]event.Event, 0, maxRecords),
		maxRecords:   maxRecords,
		maxSizeBytes: maxSizeBytes,
	}
}

// Add appends an event. It fails with ErrBufferFull when the batch is at capacity.
func (b *Batch) Add(ev event.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := int64(EstimateSize(ev))

	if len(b.events) >= b.maxRecords {
		return fmt.Errorf("%w: max records (%d) reached", errors.ErrBufferFull, b.maxRecords)
	}

	// A single oversized event is still accepted into an empty batch.
	if b.maxSizeBytes > 0 && len(b.events) > 0 && b.currentSize+size > b.maxSizeBytes {
		return fmt.Errorf("%w: max size (%d bytes) would be exceeded", errors.ErrBufferFull, b.maxSizeBytes)
	}

	b.events = append(b.events, ev)
	b.currentSize += size

	now := time.Now()
	if b.firstWriteTime.IsZero() {
		b.firstWriteTime = now
	}
	b.lastWriteTime = now

	return nil
}

// Drain removes and returns all events. The returned slice is owned by the caller.
func (b *Batch) Drain() []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.events
	b.reset()
	return events
}

// Stats returns current batch statistics.
func (b *Batch) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Stats{
		RecordCount:    len(b.events),
		SizeBytes:      b.currentSize,
		FirstWriteTime: b.firstWriteTime,
		LastWriteTime:  b.lastWriteTime,
	}
}

// Len returns the number of buffered events.
func (b *Batch) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// Cap returns the maximum number of events per batch.
func (b *Batch) Cap() int {
	return b.maxRecords
}

// IsFull returns true once the batch can take no more events.
func (b *Batch) IsFull() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.events) >= b.maxRecords {
		return true
	}
	return b.maxSizeBytes > 0 && b.currentSize >= b.maxSizeBytes
}

// IsEmpty returns true if the batch is empty.
func (b *Batch) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events) == 0
}

// Reset clears the batch and its statistics.
func (b *Batch) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *Batch) reset() {
	b.events = make([]event.Event, 0, b.maxRecords)
	b.currentSize = 0
	b.firstWriteTime = time.Time{}
	b.lastWriteTime = time.Time{}
}

// EstimateSize returns the textual length of an event, the unit used for
// approximate size accounting.
func EstimateSize(ev event.Event) int {
	if ev.Raw != "" {
		return len(ev.Raw)
	}
	size := 0
	for k, v := range ev.Fields {
		size += len(k) + len(fmt.Sprint(v))
	}
	return size
}
