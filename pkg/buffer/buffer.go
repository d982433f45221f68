// Package buffer defines interfaces for event batching.
//
// Buffers accumulate events up to a fixed capacity before they are handed
// to a sink, keeping memory bounded regardless of the source file size.
package buffer

import (
	"github.com/jittakal/evexport/pkg/event"
)

// Buffer accumulates events for one export batch.
type Buffer interface {
	// Add adds an event to the buffer.
	// Returns an error if the buffer is already full.
	Add(ev event.Event) error

	// Drain removes and returns all events from the buffer.
	// The buffer is reset after draining.
	Drain() []event.Event

	// Len returns the number of buffered events.
	Len() int

	// IsFull returns true if the buffer reached its capacity.
	IsFull() bool

	// IsEmpty returns true if the buffer contains no events.
	IsEmpty() bool

	// Reset clears the buffer.
	Reset()
}
