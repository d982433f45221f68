package buffer_test

import (
	"fmt"

	"github.com/jittakal/evexport/internal/buffer"
	"github.com/jittakal/evexport/pkg/event"
)

func Example_batch() {
	batch := buffer.New(3, 0)

	for i := 0; i < 3; i++ {
		ev := event.Event{
			Fields: map[string]any{"seq": i},
			Raw:    fmt.Sprintf(`{"seq":%d}`, i),
			Line:   int64(i + 1),
		}
		if err := batch.Add(ev); err != nil {
			fmt.Println("Error adding event:", err)
			return
		}
	}

	stats := batch.Stats()
	fmt.Printf("Events buffered: %d\n", stats.RecordCount)
	fmt.Printf("Text bytes: %d\n", stats.SizeBytes)
	fmt.Printf("Batch is full: %v\n", batch.IsFull())

	events := batch.Drain()
	fmt.Printf("Drained %d events\n", len(events))
	fmt.Printf("Batch is empty after drain: %v\n", batch.IsEmpty())

	// Output:
	// Events buffered: 3
	// Text bytes: 27
	// Batch is full: true
	// Drained 3 events
	// Batch is empty after drain: true
}
