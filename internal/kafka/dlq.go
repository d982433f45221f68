package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"

	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.RejectSink = (*RejectPublisher)(nil)

// RejectMessage is the value published for a record that could not be parsed.
type RejectMessage struct {
	Source    string    `json:"source"`
	Line      int64     `json:"line"`
	Offset    int64     `json:"offset"`
	Reason    string    `json:"reason"`
	Raw       string    `json:"raw"`
	FailedAt  time.Time `json:"failed_at"`
	Processor string    `json:"processor"`
}

// RejectPublisher publishes parse failures to a dead letter topic.
type RejectPublisher struct {
	producer sarama.SyncProducer
	topic    string
	source   string
	appName  string
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	count  atomic.Int64
}

// NewRejectPublisher connects a producer and returns a publisher for topic.
func NewRejectPublisher(cfg Config, topic, source, appName string, logger *slog.Logger) (*RejectPublisher, error) {
	producer, err := NewSyncProducer(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("reject publisher created",
		"bootstrap_servers", cfg.BootstrapServers,
		"topic", topic,
	)
	return NewRejectPublisherWithProducer(producer, topic, source, appName, logger), nil
}

// NewRejectPublisherWithProducer returns a publisher around an existing producer.
func NewRejectPublisherWithProducer(producer sarama.SyncProducer, topic, source, appName string, logger *slog.Logger) *RejectPublisher {
	return &RejectPublisher{
		producer: producer,
		topic:    topic,
		source:   source,
		appName:  appName,
		logger:   logger,
	}
}

// Reject publishes one failure.
func (p *RejectPublisher) Reject(ctx context.Context, failure *event.ParseFailure) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return apperrors.ErrSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(RejectMessage{
		Source:    p.source,
		Line:      failure.Line,
		Offset:    failure.Offset,
		Reason:    failure.Reason,
		Raw:       failure.Raw,
		FailedAt:  time.Now().UTC(),
		Processor: p.appName,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal reject: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(recordKey(p.source, failure.Line)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("failure_reason"), Value: []byte(failure.Reason)},
			{Key: []byte("source"), Value: []byte(p.source)},
			{Key: []byte("processor"), Value: []byte(p.appName)},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("failed to publish reject",
			"error", err,
			"topic", p.topic,
			"line", failure.Line,
		)
		return fmt.Errorf("failed to send reject: %w", err)
	}

	p.count.Add(1)

	p.logger.Debug("published reject",
		"topic", p.topic,
		"partition", partition,
		"offset", offset,
		"line", failure.Line,
	)
	return nil
}

// Count returns the number of failures published.
func (p *RejectPublisher) Count() int64 {
	return p.count.Load()
}

// Close closes the producer.
func (p *RejectPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.producer.Close(); err != nil {
		p.logger.Error("error closing producer", "error", err)
		return err
	}
	p.logger.Info("reject publisher closed", "topic", p.topic, "published", p.count.Load())
	return nil
}
