// Package obslog provides structured logging for index operations
// (insert, delete, knn_search, threshold_search, dump, load): a
// configurable global slog.Logger, context-carried operation/index/metric
// attributes, a bounded in-memory log of recent operations (activity.go),
// and a per-operation timing dashboard with operation-specific
// slow-call alerting (dashboard.go).
package obslog

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// ContextKey is the type for context keys used in logging.
type ContextKey string

const (
	// OperationKey is the context key for the index operation name
	// (insert, delete, knn_search, threshold_search, dump, load).
	OperationKey ContextKey = "operation"
	// IndexKey is the context key for the snapshot or index identifier
	// an operation is acting on.
	IndexKey ContextKey = "index"
	// MetricKey is the context key for the active distance metric tag
	// (tlsh, ssdeep).
	MetricKey ContextKey = "metric"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level slog.Level

	// Format selects the slog handler: "json" or "text".
	Format string

	// Output is where logs are written. Defaults to stderr.
	Output io.Writer

	// AddSource adds source file and line number to log records.
	AddSource bool
}

// DefaultConfig returns the baseline logger configuration: info level,
// JSON to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  slog.LevelInfo,
		Format: "json",
		Output: os.Stderr,
	}
}

var defaultLogger *slog.Logger

func buildHandler(cfg *Config) slog.Handler {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	if cfg.Format == "text" {
		return slog.NewTextHandler(cfg.Output, opts)
	}
	return slog.NewJSONHandler(cfg.Output, opts)
}

// Init installs the global logger from cfg. A nil cfg uses DefaultConfig.
func Init(cfg *Config) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	defaultLogger = slog.New(buildHandler(cfg))
	slog.SetDefault(defaultLogger)
}

// Get returns the global logger, initializing it with defaults on first
// use if Init was never called.
func Get() *slog.Logger {
	if defaultLogger == nil {
		Init(DefaultConfig())
	}
	return defaultLogger
}

// WithContext returns the global logger bound with whichever of
// operation/index/metric ctx carries.
func WithContext(ctx context.Context) *slog.Logger {
	logger := Get()

	attrs := make([]any, 0, 6)
	if op, ok := ctx.Value(OperationKey).(string); ok && op != "" {
		attrs = append(attrs, "operation", op)
	}
	if idx, ok := ctx.Value(IndexKey).(string); ok && idx != "" {
		attrs = append(attrs, "index", idx)
	}
	if m, ok := ctx.Value(MetricKey).(string); ok && m != "" {
		attrs = append(attrs, "metric", m)
	}

	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	return logger
}

func Debug(msg string, args ...any) { Get().Debug(msg, args...) }
func Info(msg string, args ...any)  { Get().Info(msg, args...) }
func Warn(msg string, args ...any)  { Get().Warn(msg, args...) }
func Error(msg string, args ...any) { Get().Error(msg, args...) }

func DebugContext(ctx context.Context, msg string, args ...any) { WithContext(ctx).Debug(msg, args...) }
func InfoContext(ctx context.Context, msg string, args ...any)  { WithContext(ctx).Info(msg, args...) }
func WarnContext(ctx context.Context, msg string, args ...any)  { WithContext(ctx).Warn(msg, args...) }
func ErrorContext(ctx context.Context, msg string, args ...any) { WithContext(ctx).Error(msg, args...) }
