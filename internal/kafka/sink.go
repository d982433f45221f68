package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"

	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Sink = (*Sink)(nil)

// Sink publishes every exported row as one message.
// The key is "<source>:<line>" and the value is the row's fields as a JSON object.
// A batch is sent with a single SendMessages call.
type Sink struct {
	producer sarama.SyncProducer
	topic    string
	source   string
	appName  string
	logger   *slog.Logger
	metrics  MetricsCollector

	mu     sync.Mutex
	closed bool
}

// NewSink connects a producer and returns a sink publishing to topic.
func NewSink(cfg Config, topic, source, appName string, logger *slog.Logger, metrics MetricsCollector) (*Sink, error) {
	producer, err := NewSyncProducer(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("kafka sink created",
		"bootstrap_servers", cfg.BootstrapServers,
		"topic", topic,
		"security_protocol", cfg.SecurityProtocol,
	)
	return NewSinkWithProducer(producer, topic, source, appName, logger, metrics), nil
}

// NewSinkWithProducer returns a sink around an existing producer.
func NewSinkWithProducer(producer sarama.SyncProducer, topic, source, appName string, logger *slog.Logger, metrics MetricsCollector) *Sink {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Sink{
		producer: producer,
		topic:    topic,
		source:   source,
		appName:  appName,
		logger:   logger,
		metrics:  metrics,
	}
}

// Append sends one message per event.
func (s *Sink) Append(ctx context.Context, events []event.Event) (*event.BatchStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, apperrors.ErrSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return &event.BatchStats{WrittenAt: time.Now()}, nil
	}

	startTime := time.Now()
	msgs := make([]*sarama.ProducerMessage, len(events))
	var size int64
	for i, ev := range events {
		msg, n, err := s.message(ev)
		if err != nil {
			s.metrics.IncStorageErrors("kafka", "marshal")
			return nil, err
		}
		msgs[i] = msg
		size += int64(n)
	}

	if err := s.producer.SendMessages(msgs); err != nil {
		s.metrics.IncStorageErrors("kafka", "send")
		var perrs sarama.ProducerErrors
		if errors.As(err, &perrs) {
			s.logger.Error("failed to publish rows",
				"topic", s.topic,
				"failed", len(perrs),
				"batch", len(msgs),
				"error", perrs[0].Err,
			)
		}
		return nil, &apperrors.StorageError{Operation: "send", Path: "kafka://" + s.topic, Err: err}
	}

	duration := time.Since(startTime)
	s.metrics.ObserveStorageWriteDuration("kafka", duration.Seconds())
	s.logger.Debug("published rows",
		"topic", s.topic,
		"record_count", len(msgs),
		"bytes", size,
		"duration_ms", duration.Milliseconds(),
	)

	return &event.BatchStats{
		RecordCount: len(events),
		SizeBytes:   size,
		WrittenAt:   time.Now(),
	}, nil
}

func (s *Sink) message(ev event.Event) (*sarama.ProducerMessage, int, error) {
	value, err := json.Marshal(ev.Fields)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal line %d: %w", ev.Line, err)
	}
	return &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(recordKey(s.source, ev.Line)),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("source"), Value: []byte(s.source)},
			{Key: []byte("line"), Value: []byte(strconv.FormatInt(ev.Line, 10))},
			{Key: []byte("offset"), Value: []byte(strconv.FormatInt(ev.Offset, 10))},
			{Key: []byte("producer"), Value: []byte(s.appName)},
		},
		Timestamp: time.Now(),
	}, len(value), nil
}

func recordKey(source string, line int64) string {
	return source + ":" + strconv.FormatInt(line, 10)
}

// Close flushes and closes the producer.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.producer.Close(); err != nil {
		s.logger.Error("error closing producer", "error", err)
		return err
	}
	s.logger.Info("kafka sink closed", "topic", s.topic)
	return nil
}
