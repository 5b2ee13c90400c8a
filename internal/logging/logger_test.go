package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.input); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestConsoleHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	handler := newConsoleHandler(&buf, lvl)
	logger := slog.New(handler).With(slog.Int64("upload", 42))

	logger.Info("optimization finished", slog.String("state", "done"))

	line := buf.String()
	for _, fragment := range []string{"INFO", "optimization finished", "upload=42", "state=done"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in output %q", fragment, line)
		}
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("expected no color codes for non-terminal writer, got %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	handler := newConsoleHandler(&buf, lvl)

	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}

	record := slog.NewRecord(time.Now(), slog.LevelWarn, "careful", 0)
	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(buf.String(), "careful") {
		t.Fatalf("expected message in output, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
