// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogMsg carries one log record into the bubbletea event loop, where
// the model surfaces it on the status line instead of letting it tear
// through the alternate screen.
type LogMsg struct {
	Time    time.Time
	Level   slog.Level
	Message string
}

// logSink is the delivery target, shared by a handler and every
// derived handler so SetSink reaches loggers created before the
// program started.
type logSink struct {
	mu   sync.Mutex
	send func(LogMsg)
}

// LogHandler is a slog.Handler that forwards records to a running
// bubbletea program. Records emitted before the program starts (or
// after it exits) are dropped; pair it with a file handler when a
// durable log is wanted.
type LogHandler struct {
	level slog.Level
	sink  *logSink
	attrs []slog.Attr
}

// NewLogHandler creates a handler that forwards records at or above
// level. Call SetSink once the program is running.
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{level: level, sink: &logSink{}}
}

// SetSink installs the delivery function, typically program.Send
// wrapped to the right message type. Passing nil detaches the sink.
// The sink is shared with handlers derived via WithAttrs.
func (h *LogHandler) SetSink(send func(LogMsg)) {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	h.sink.send = send
}

// Enabled implements slog.Handler.
func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler. Attributes are folded into the
// message text; the status line has no structure to display them in.
func (h *LogHandler) Handle(_ context.Context, record slog.Record) error {
	parts := []string{record.Message}
	for _, attr := range h.attrs {
		parts = append(parts, fmt.Sprintf("%s=%v", attr.Key, attr.Value))
	}
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, fmt.Sprintf("%s=%v", attr.Key, attr.Value))
		return true
	})

	h.sink.mu.Lock()
	send := h.sink.send
	h.sink.mu.Unlock()
	if send != nil {
		send(LogMsg{
			Time:    record.Time,
			Level:   record.Level,
			Message: strings.Join(parts, " "),
		})
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{
		level: h.level,
		sink:  h.sink,
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

// WithGroup implements slog.Handler. Groups are flattened; the status
// line is a single string.
func (h *LogHandler) WithGroup(string) slog.Handler { return h }
