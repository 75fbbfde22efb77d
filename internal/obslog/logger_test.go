package obslog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != slog.LevelInfo {
		t.Errorf("Expected level Info, got %v", cfg.Level)
	}

	if cfg.Format != "json" {
		t.Errorf("Expected format json, got %s", cfg.Format)
	}

	if cfg.AddSource {
		t.Error("Expected AddSource to be false")
	}
}

func TestInit_JSONHandler(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:     slog.LevelDebug,
		Format:    "json",
		Output:    &buf,
		AddSource: false,
	}

	Init(cfg)

	logger := Get()
	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("Expected log to contain message")
	}

	if !strings.Contains(output, "key") {
		t.Error("Expected log to contain key")
	}

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Errorf("Expected valid JSON, got error: %v", err)
	}
}

func TestInit_TextHandler(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  slog.LevelInfo,
		Format: "text",
		Output: &buf,
	}

	Init(cfg)

	logger := Get()
	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("Expected log to contain message")
	}

	if !strings.Contains(output, "key=value") {
		t.Error("Expected log to contain key=value")
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  slog.LevelDebug,
		Format: "json",
		Output: &buf,
	}

	Init(cfg)

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	output := buf.String()

	if !strings.Contains(output, "debug message") {
		t.Error("Expected debug message")
	}

	if !strings.Contains(output, "info message") {
		t.Error("Expected info message")
	}

	if !strings.Contains(output, "warn message") {
		t.Error("Expected warn message")
	}

	if !strings.Contains(output, "error message") {
		t.Error("Expected error message")
	}
}

func TestWithContext_Index(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  slog.LevelInfo,
		Format: "json",
		Output: &buf,
	}

	Init(cfg)

	ctx := context.WithValue(context.Background(), IndexKey, "fingerprints.apo")
	InfoContext(ctx, "test message")

	output := buf.String()

	if !strings.Contains(output, "fingerprints.apo") {
		t.Error("Expected log to contain index")
	}

	if !strings.Contains(output, "index") {
		t.Error("Expected log to have index field")
	}
}

func TestWithContext_Operation(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  slog.LevelInfo,
		Format: "json",
		Output: &buf,
	}

	Init(cfg)

	ctx := context.WithValue(context.Background(), OperationKey, "knn_search")
	InfoContext(ctx, "test message")

	output := buf.String()

	if !strings.Contains(output, "knn_search") {
		t.Error("Expected log to contain operation")
	}

	if !strings.Contains(output, "operation") {
		t.Error("Expected log to have operation field")
	}
}

func TestWithContext_Metric(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  slog.LevelInfo,
		Format: "json",
		Output: &buf,
	}

	Init(cfg)

	ctx := context.WithValue(context.Background(), MetricKey, "tlsh")
	InfoContext(ctx, "test message")

	output := buf.String()

	if !strings.Contains(output, "tlsh") {
		t.Error("Expected log to contain metric name")
	}

	if !strings.Contains(output, "metric") {
		t.Error("Expected log to have metric field")
	}
}

func TestWithContext_MultipleFields(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  slog.LevelInfo,
		Format: "json",
		Output: &buf,
	}

	Init(cfg)

	ctx := context.Background()
	ctx = context.WithValue(ctx, IndexKey, "fingerprints.apo")
	ctx = context.WithValue(ctx, OperationKey, "insert")
	ctx = context.WithValue(ctx, MetricKey, "ssdeep")

	InfoContext(ctx, "test message")

	output := buf.String()

	expectedFields := []string{"fingerprints.apo", "insert", "ssdeep"}
	for _, field := range expectedFields {
		if !strings.Contains(output, field) {
			t.Errorf("Expected log to contain %s", field)
		}
	}
}

func TestContextLogging(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  slog.LevelDebug,
		Format: "json",
		Output: &buf,
	}

	Init(cfg)

	ctx := context.WithValue(context.Background(), IndexKey, "charlie.apo")

	DebugContext(ctx, "debug with context", "detail", "value1")
	buf.Reset()

	InfoContext(ctx, "info with context", "detail", "value2")
	output := buf.String()
	if !strings.Contains(output, "charlie.apo") || !strings.Contains(output, "value2") {
		t.Error("Expected info context to include index and detail")
	}
	buf.Reset()

	WarnContext(ctx, "warn with context", "detail", "value3")
	output = buf.String()
	if !strings.Contains(output, "charlie.apo") || !strings.Contains(output, "value3") {
		t.Error("Expected warn context to include index and detail")
	}
	buf.Reset()

	ErrorContext(ctx, "error with context", "detail", "value4")
	output = buf.String()
	if !strings.Contains(output, "charlie.apo") || !strings.Contains(output, "value4") {
		t.Error("Expected error context to include index and detail")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  slog.LevelWarn,
		Format: "json",
		Output: &buf,
	}

	Init(cfg)

	Debug("debug message - should not appear")
	Info("info message - should not appear")
	Warn("warn message - should appear")
	Error("error message - should appear")

	output := buf.String()

	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out")
	}

	if strings.Contains(output, "info message") {
		t.Error("Info message should be filtered out")
	}

	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should be present")
	}

	if !strings.Contains(output, "error message") {
		t.Error("Error message should be present")
	}
}
