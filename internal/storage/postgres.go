package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	apperrors "github.com/jittakal/evexport/internal/errors"
	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Sink = (*PostgresSink)(nil)

// DefaultPostgresTable is the table events are copied into.
const DefaultPostgresTable = "eve_events"

// PostgresSink copies batches into a table with one JSONB document per event.
// Each batch is one transaction, so a failed batch leaves no partial rows.
type PostgresSink struct {
	db      *sql.DB
	schema  string
	table   string
	source  string
	logger  *slog.Logger
	metrics MetricsCollector
}

// NewPostgresSink connects to dsn and creates the target table if needed.
// The table may be schema-qualified ("analytics.eve_events").
func NewPostgresSink(ctx context.Context, dsn, table, source string, logger *slog.Logger, metrics MetricsCollector) (*PostgresSink, error) {
	schema, name, err := SplitTableName(table)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresSink{
		db:      db,
		schema:  schema,
		table:   name,
		source:  source,
		logger:  logger,
		metrics: metricsOrNop(metrics),
	}
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("postgres sink created", "table", s.qualifiedName())
	return s, nil
}

// SplitTableName splits an optional schema prefix from a table name.
func SplitTableName(table string) (string, string, error) {
	if table == "" {
		table = DefaultPostgresTable
	}
	parts := strings.Split(table, ".")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return "", parts[0], nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return parts[0], parts[1], nil
	default:
		return "", "", &apperrors.ConfigError{Key: "postgres.table", Reason: fmt.Sprintf("invalid table name %q", table)}
	}
}

func (s *PostgresSink) qualifiedName() string {
	if s.schema == "" {
		return pq.QuoteIdentifier(s.table)
	}
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(s.table)
}

// InitSchema creates the target table if it does not exist.
func (s *PostgresSink) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		source TEXT NOT NULL,
		line BIGINT NOT NULL,
		byte_offset BIGINT NOT NULL,
		fields JSONB NOT NULL,
		exported_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	)`, s.qualifiedName())

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Append copies events into the table using COPY.
func (s *PostgresSink) Append(ctx context.Context, events []event.Event) (*event.BatchStats, error) {
	if len(events) == 0 {
		return &event.BatchStats{WrittenAt: time.Now()}, nil
	}
	startTime := time.Now()

	n, err := s.copyEvents(ctx, events)
	if err != nil {
		s.metrics.IncStorageErrors("postgres", "copy")
		return nil, &apperrors.StorageError{Operation: "copy", Path: s.qualifiedName(), Err: err}
	}

	duration := time.Since(startTime)
	s.metrics.ObserveStorageWriteDuration("postgres", duration.Seconds())
	s.logger.Debug("copied rows", "record_count", len(events), "bytes", n, "duration_ms", duration.Milliseconds())

	return &event.BatchStats{
		RecordCount: len(events),
		SizeBytes:   n,
		WrittenAt:   time.Now(),
	}, nil
}

func (s *PostgresSink) copyEvents(ctx context.Context, events []event.Event) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var copyIn string
	if s.schema == "" {
		copyIn = pq.CopyIn(s.table, "source", "line", "byte_offset", "fields")
	} else {
		copyIn = pq.CopyInSchema(s.schema, s.table, "source", "line", "byte_offset", "fields")
	}

	stmt, err := tx.PrepareContext(ctx, copyIn)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare copy: %w", err)
	}

	var size int64
	for _, ev := range events {
		doc, err := json.Marshal(ev.Fields)
		if err != nil {
			stmt.Close()
			return 0, fmt.Errorf("failed to marshal line %d: %w", ev.Line, err)
		}
		size += int64(len(doc))
		if _, err := stmt.ExecContext(ctx, s.source, ev.Line, ev.Offset, string(doc)); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("failed to copy line %d: %w", ev.Line, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return size, nil
}

// Close closes the database connection.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
