package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/jittakal/evexport/internal/config"
	"github.com/jittakal/evexport/internal/config/dto"
	"github.com/jittakal/evexport/internal/exporter"
	"github.com/jittakal/evexport/internal/observability"
	"github.com/jittakal/evexport/internal/parser"
	"github.com/jittakal/evexport/internal/reader"
	"github.com/jittakal/evexport/internal/server"
	"github.com/jittakal/evexport/internal/stream"
	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/source"
	pkgstorage "github.com/jittakal/evexport/pkg/storage"
)

// flagKeys maps command-line flags to the configuration keys they override.
var flagKeys = map[string]string{
	"input":      "source.path",
	"output":     "export.output",
	"format":     "export.format",
	"chunk-size": "source.chunk_size",
	"batch-size": "export.batch_size",
	"columns":    "export.columns",
	"overflow":   "export.overflow_column",
	"rejects":    "export.rejects",
	"reader":     "source.reader",
	"log-level":  "observability.logging.level",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	_, err := run(ctx, os.Args[1:], afero.NewOsFs(), nil)
	stop()
	if err != nil {
		log.Fatalf("application error: %v", err)
	}
}

// run exports one source file. Logs go to logOut when it is non-nil,
// otherwise to the configured output.
func run(ctx context.Context, args []string, fs afero.Fs, logOut io.Writer) (summary *event.ExportSummary, err error) {
	flags := flag.NewFlagSet("evexport", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to configuration file (default $EVEX_CONFIG)")
	flags.String("input", "", "input .eve file (or first positional argument)")
	flags.String("output", "", "output location: file path, s3://, gs://, wasbs://, kafka:// or postgres://")
	flags.String("format", "", "output format: csv, parquet or avro")
	flags.Int("chunk-size", 0, "bytes per read")
	flags.Int("batch-size", 0, "rows per batch")
	flags.String("columns", "", "comma-separated column list (gjson paths)")
	flags.String("overflow", "", "csv column collecting fields that arrive after the header is written")
	flags.String("rejects", "", "rejects location for unparseable records: file path or kafka://")
	flags.String("reader", "", "reader implementation: buffered or mmap")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	loader := config.NewLoaderWithFs(fs)
	if err := applyFlags(loader, flags); err != nil {
		return nil, err
	}

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = os.Getenv("EVEX_CONFIG")
	}
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg, logOut)
	logger.Info("starting eve export",
		"application", cfg.Application.Name,
		"source", cfg.Source.Path,
		"output", redactLocation(cfg.Export.Output),
		"format", cfg.Export.Format,
		"reader", cfg.Source.Reader,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Track cleanup functions, run in reverse order on return
	type cleanup struct {
		name string
		fn   func() error
	}
	var cleanupFuncs []cleanup
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, cleanup{name: name, fn: fn})
		logger.Debug("registered cleanup", "component", name)
	}
	defer func() {
		var result *multierror.Error
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			c := cleanupFuncs[i]
			if cerr := c.fn(); cerr != nil {
				logger.Error("cleanup failed", "component", c.name, "error", cerr)
				result = multierror.Append(result, fmt.Errorf("%s: %w", c.name, cerr))
			}
		}
		if cerr := result.ErrorOrNil(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	health := server.NewExportHealth(cfg.Source.Path, redactLocation(cfg.Export.Output))
	if cfg.Observability.Metrics.Enabled {
		httpServer := server.NewServer(server.Config{
			HealthPort:     cfg.Observability.Health.Port,
			MetricsPort:    cfg.Observability.Metrics.Port,
			MetricsEnabled: true,
		}, health, registry, logger)
		if err := httpServer.Start(); err != nil {
			return nil, fmt.Errorf("failed to start HTTP server: %w", err)
		}
		addCleanup("http-server", func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	// The source is opened first so a missing input fails before any sink
	// creates files, connects to brokers or runs DDL.
	var rejects pkgstorage.RejectSink
	var onFailure func(*event.ParseFailure)
	if cfg.Export.Rejects != "" {
		onFailure = func(f *event.ParseFailure) {
			if err := rejects.Reject(ctx, f); err != nil {
				metrics.IncRejects("error")
				logger.Error("failed to record rejected line", "line", f.Line, "error", err)
				return
			}
			metrics.IncRejects("success")
		}
	}

	st, err := stream.Open(fs, cfg.Source.Path, reader.Options{
		ChunkSize:  cfg.Source.ChunkSize,
		HeaderSize: cfg.Source.HeaderSize,
		SkipHeader: cfg.Source.SkipHeader,
		Mode:       reader.Mode(strings.ToLower(cfg.Source.Reader)),
	}, alternateParser(cfg.Source.AlternateFormat), stream.Options{
		MaxFailuresRetained: cfg.Source.MaxFailuresRetained,
		OnFailure:           onFailure,
		Logger:              logger,
		Metrics:             metrics,
	})
	if err != nil {
		health.Fail(err)
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	addCleanup("stream", st.Close)

	sink, sinkName, err := newSink(ctx, fs, cfg, logger, metrics)
	if err != nil {
		health.Fail(err)
		return nil, fmt.Errorf("failed to create sink: %w", err)
	}
	if sink != nil {
		addCleanup("sink", sink.Close)
	}

	if rejects, err = newRejectSink(fs, cfg, logger); err != nil {
		health.Fail(err)
		return nil, fmt.Errorf("failed to create rejects sink: %w", err)
	}
	if rejects != nil {
		addCleanup("rejects", rejects.Close)
	}

	exp, err := exporter.New(sink, exporter.Options{
		BatchSize: cfg.Export.BatchSize,
		SinkName:  sinkName,
		Progress:  observability.NewProgressLogger(logger, cfg.Observability.Progress.IntervalBytes, metrics),
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		health.Fail(err)
		return nil, err
	}

	health.SetPhase(server.PhaseExporting)
	summary, err = exp.RunStream(ctx, st)
	health.Record(summary.Events, summary.Batches)
	if err != nil {
		health.Fail(err)
		return summary, fmt.Errorf("export failed: %w", err)
	}
	health.SetPhase(server.PhaseDone)

	logger.Info("export finished",
		"events", summary.Events,
		"batches", summary.Batches,
		"rows_written", summary.RowsWritten,
		"header_rows", summary.HeaderRows,
		"bytes_processed", summary.BytesProcessed,
		"parse_failures", summary.ParseFailures,
		"duration_ms", summary.Duration.Milliseconds(),
	)

	return summary, nil
}

// applyFlags copies explicitly set flags into loader overrides. A positional
// argument is the input path unless -input was given.
func applyFlags(loader *config.Loader, flags *flag.FlagSet) error {
	inputSet := false
	flags.Visit(func(f *flag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if f.Name == "input" {
			inputSet = true
		}
		if f.Name == "columns" {
			loader.Set(key, splitColumns(f.Value.String()))
			return
		}
		loader.Set(key, f.Value.String())
	})

	switch flags.NArg() {
	case 0:
	case 1:
		if !inputSet {
			loader.Set("source.path", flags.Arg(0))
		}
	default:
		return fmt.Errorf("expected at most one input file, got %d arguments", flags.NArg())
	}
	return nil
}

func splitColumns(s string) []string {
	var columns []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			columns = append(columns, c)
		}
	}
	return columns
}

func newLogger(cfg *dto.ApplicationConfig, w io.Writer) *slog.Logger {
	logCfg := observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	}
	if w != nil {
		return observability.NewLoggerWithWriter(logCfg, w)
	}
	return observability.NewLogger(logCfg)
}

func alternateParser(name string) source.AlternateParser {
	if strings.EqualFold(name, "keyvalue") {
		return parser.KeyValueAlternate()
	}
	return nil
}
