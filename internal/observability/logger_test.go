package observability

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config LoggingConfig
	}{
		{name: "json to stderr", config: LoggingConfig{Level: "info", Format: "json"}},
		{name: "text to stdout", config: LoggingConfig{Level: "debug", Format: "text", Output: "stdout"}},
		{name: "defaults", config: LoggingConfig{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if logger := NewLogger(tt.config); logger == nil {
				t.Fatal("NewLogger returned nil")
			}
		})
	}
}

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "info"}, &buf)

	logger.Debug("hidden")
	logger.Info("parse failure", "line", 3, "offset", 40)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "parse failure" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["line"] != float64(3) {
		t.Errorf("line = %v", entry["line"])
	}
}

func TestNewLoggerWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "debug", Format: "TEXT"}, &buf)

	logger.Debug("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") || !strings.Contains(output, "key=value") {
		t.Errorf("unexpected text output: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.name); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
