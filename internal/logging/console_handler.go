package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// consoleHandler renders records as single human-oriented lines:
//
//	15:04:05 INFO  optimization finished upload=42 duration=179s
type consoleHandler struct {
	mu     sync.Mutex
	writer io.Writer
	level  *slog.LevelVar
	attrs  []slog.Attr
	color  bool
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar) slog.Handler {
	return &consoleHandler{writer: w, level: lvl, color: colorEnabled(w)}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var buf bytes.Buffer
	buf.Grow(128)
	buf.WriteString(timestamp.Format("15:04:05"))
	buf.WriteByte(' ')
	h.writeLevel(&buf, record.Level)
	buf.WriteByte(' ')
	buf.WriteString(record.Message)

	for _, attr := range h.attrs {
		h.writeAttr(&buf, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		h.writeAttr(&buf, attr)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &consoleHandler{writer: h.writer, level: h.level, color: h.color}
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return clone
}

// WithGroup flattens groups; they are not used in this codebase.
func (h *consoleHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *consoleHandler) writeLevel(buf *bytes.Buffer, level slog.Level) {
	label := fmt.Sprintf("%-5s", level.String())
	if !h.color {
		buf.WriteString(label)
		return
	}
	switch {
	case level >= slog.LevelError:
		buf.WriteString(ansiRed + label + ansiReset)
	case level >= slog.LevelWarn:
		buf.WriteString(ansiYellow + label + ansiReset)
	case level < slog.LevelInfo:
		buf.WriteString(ansiDim + label + ansiReset)
	default:
		buf.WriteString(ansiCyan + label + ansiReset)
	}
}

func (h *consoleHandler) writeAttr(buf *bytes.Buffer, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	buf.WriteByte(' ')
	if h.color {
		buf.WriteString(ansiDim)
	}
	buf.WriteString(attr.Key)
	buf.WriteByte('=')
	buf.WriteString(attr.Value.String())
	if h.color {
		buf.WriteString(ansiReset)
	}
}
