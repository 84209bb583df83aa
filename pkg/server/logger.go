package server

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LogEntry is one captured log record for a research job.
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// MemoryLogHandler is a slog.Handler that buffers records in memory, one
// instance per research job, so clients can fetch a job's progress log.
type MemoryLogHandler struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewMemoryLogHandler() *MemoryLogHandler {
	return &MemoryLogHandler{}
}

func (h *MemoryLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

func (h *MemoryLogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]interface{})
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	h.entries = append(h.entries, LogEntry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
		Metadata:  attrs,
	})
	h.mu.Unlock()
	return nil
}

// WithAttrs and WithGroup return the handler unchanged; job logs are flat and
// the extra structure is not worth a handler chain here.
func (h *MemoryLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *MemoryLogHandler) WithGroup(name string) slog.Handler      { return h }

// Entries returns a copy of the captured log.
func (h *MemoryLogHandler) Entries() []LogEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]LogEntry, len(h.entries))
	copy(out, h.entries)
	return out
}
