package observability

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultProgressInterval is the number of bytes between progress log lines.
const DefaultProgressInterval int64 = 64 << 20

// ProgressGauge receives the processed fraction of the source.
type ProgressGauge interface {
	SetProgress(ratio float64)
}

// ProgressLogger logs export progress every interval bytes.
type ProgressLogger struct {
	logger   *slog.Logger
	interval int64
	gauge    ProgressGauge

	mu        sync.Mutex
	next      int64
	done      bool
	startTime time.Time
}

// NewProgressLogger creates a progress logger. A non-positive interval means
// DefaultProgressInterval; gauge may be nil.
func NewProgressLogger(logger *slog.Logger, interval int64, gauge ProgressGauge) *ProgressLogger {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &ProgressLogger{
		logger:    logger,
		interval:  interval,
		gauge:     gauge,
		next:      interval,
		startTime: time.Now(),
	}
}

// Update records the current position. It logs once each time processed
// crosses the next interval boundary, and once more at completion.
func (p *ProgressLogger) Update(processed, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return
	}
	complete := total > 0 && processed >= total
	if processed < p.next && !complete {
		return
	}

	ratio := 0.0
	if total > 0 {
		ratio = float64(processed) / float64(total)
	}
	if p.gauge != nil {
		p.gauge.SetProgress(ratio)
	}

	elapsed := time.Since(p.startTime)
	p.logger.Info("export progress",
		"bytes_processed", processed,
		"bytes_total", total,
		"percent", int(ratio*100),
		"elapsed_ms", elapsed.Milliseconds(),
	)

	if complete {
		p.done = true
		return
	}
	p.next = (processed/p.interval + 1) * p.interval
}
