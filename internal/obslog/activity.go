package obslog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// OperationEvent is one completed index operation as observed by the
// activity log: which operation, against which index and metric, how
// long it took, and whether it failed.
type OperationEvent struct {
	Time      time.Time
	Operation string
	Index     string
	Metric    string
	Duration  time.Duration
	Failed    bool
}

// ActivityLog is a bounded circular buffer of the most recent operation
// events, letting a caller inspect recent insert/search/dump/load
// activity without standing up a separate metrics backend.
type ActivityLog struct {
	mu      sync.RWMutex
	events  []OperationEvent
	maxSize int
	next    int
}

// NewActivityLog creates an activity log retaining at most maxSize
// events. maxSize <= 0 defaults to 1000.
func NewActivityLog(maxSize int) *ActivityLog {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &ActivityLog{
		events:  make([]OperationEvent, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record appends e, evicting the oldest retained event once the log is
// full.
func (a *ActivityLog) Record(e OperationEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.events) < a.maxSize {
		a.events = append(a.events, e)
		return
	}
	a.events[a.next] = e
	a.next = (a.next + 1) % a.maxSize
}

// Recent returns up to n retained events, most recently recorded first.
// n <= 0 returns every retained event.
func (a *ActivityLog) Recent(n int) []OperationEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()

	// Once the buffer has wrapped, the oldest event sits at a.next.
	out := make([]OperationEvent, 0, len(a.events))
	out = append(out, a.events[a.next:]...)
	out = append(out, a.events[:a.next]...)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Failures returns every retained failed event, newest first.
func (a *ActivityLog) Failures() []OperationEvent {
	var out []OperationEvent
	for _, e := range a.Recent(0) {
		if e.Failed {
			out = append(out, e)
		}
	}
	return out
}

// ForOperation returns every retained event with the given operation
// name, newest first.
func (a *ActivityLog) ForOperation(op string) []OperationEvent {
	var out []OperationEvent
	for _, e := range a.Recent(0) {
		if e.Operation == op {
			out = append(out, e)
		}
	}
	return out
}

// Clear empties the log.
func (a *ActivityLog) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = a.events[:0]
	a.next = 0
}

// Len reports the number of events currently retained.
func (a *ActivityLog) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.events)
}

// ActivityHandler wraps an slog.Handler, recording every "operation
// completed"/"operation failed" record emitted by
// internal/index.IndexFacade into an ActivityLog, then delegating to the
// wrapped handler unchanged. Records with no "operation" attribute pass
// through without being recorded.
type ActivityHandler struct {
	handler slog.Handler
	log     *ActivityLog
	// attrs holds the attributes bound through WithAttrs (as
	// slog.Logger.With does), which records do not repeat.
	attrs []slog.Attr
}

// NewActivityHandler wraps handler, feeding log from its records.
func NewActivityHandler(handler slog.Handler, log *ActivityLog) *ActivityHandler {
	return &ActivityHandler{handler: handler, log: log}
}

func (h *ActivityHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *ActivityHandler) Handle(ctx context.Context, record slog.Record) error {
	ev := OperationEvent{Time: record.Time, Failed: record.Level >= slog.LevelError}
	var haveOp bool

	collect := func(attr slog.Attr) bool {
		switch attr.Key {
		case "operation":
			ev.Operation = attr.Value.String()
			haveOp = true
		case "index":
			ev.Index = attr.Value.String()
		case "metric":
			ev.Metric = attr.Value.String()
		case "elapsed":
			if attr.Value.Kind() == slog.KindDuration {
				ev.Duration = attr.Value.Duration()
			}
		}
		return true
	}
	for _, attr := range h.attrs {
		collect(attr)
	}
	record.Attrs(collect)

	if haveOp {
		h.log.Record(ev)
	}
	return h.handler.Handle(ctx, record)
}

func (h *ActivityHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &ActivityHandler{handler: h.handler.WithAttrs(attrs), log: h.log, attrs: bound}
}

func (h *ActivityHandler) WithGroup(name string) slog.Handler {
	return &ActivityHandler{handler: h.handler.WithGroup(name), log: h.log, attrs: h.attrs}
}

var globalActivityLog *ActivityLog

// InitWithActivityLog installs the global logger the same way Init does,
// but routes records through an ActivityHandler first so every logged
// operation is also captured in a size-bound ActivityLog.
func InitWithActivityLog(cfg *Config, size int) *ActivityLog {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	globalActivityLog = NewActivityLog(size)
	defaultLogger = slog.New(NewActivityHandler(buildHandler(cfg), globalActivityLog))
	slog.SetDefault(defaultLogger)
	return globalActivityLog
}

// GetActivityLog returns the log installed by InitWithActivityLog, or
// nil if it was never called.
func GetActivityLog() *ActivityLog {
	return globalActivityLog
}
