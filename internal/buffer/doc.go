// Package buffer provides bounded batching for parsed events.
//
// A Batch holds at most a fixed number of events (and optionally a bounded
// amount of event text). The exporter fills it from the event stream, hands
// the drained slice to a sink and starts over, so memory stays proportional
// to the batch size rather than the file size.
//
// # Batch
//
//	batch := buffer.New(10000, 0)
//
//	for ev, err := range events {
//	    if err != nil {
//	        return err
//	    }
//	    if err := batch.Add(ev); err != nil {
//	        return err
//	    }
//	    if batch.IsFull() {
//	        if _, err := sink.Append(ctx, batch.Drain()); err != nil {
//	            return err
//	        }
//	    }
//	}
//	if !batch.IsEmpty() {
//	    _, err := sink.Append(ctx, batch.Drain())
//	}
//
// Add fails with errors.ErrBufferFull once the batch is at capacity; callers
// that check IsFull after every Add never see it.
//
// # Thread Safety
//
// All Batch methods are safe for concurrent use, which lets a health or
// metrics goroutine read Stats while the exporter fills the batch.
package buffer
