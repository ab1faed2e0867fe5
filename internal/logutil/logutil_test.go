package logutil

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogAndWrapErr(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info")
	base := errors.New("boom")

	err := LogAndWrapErr(logger, "failed to save", base, "session_id", "s1")
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error should match base, got %v", err)
	}
	if err.Error() != "failed to save: boom" {
		t.Errorf("err = %q", err.Error())
	}
	out := buf.String()
	if !strings.Contains(out, "failed to save") || !strings.Contains(out, "s1") {
		t.Errorf("log output missing fields: %s", out)
	}
}

func TestLogAndWrapErr_Nil(t *testing.T) {
	var buf bytes.Buffer
	if err := LogAndWrapErr(New(&buf, "info"), "noop", nil); err != nil {
		t.Errorf("nil error should stay nil, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be logged for nil error, got %s", buf.String())
	}
}

func TestNewTimingLogger(t *testing.T) {
	var buf bytes.Buffer
	done := NewTimingLogger(New(&buf, "debug"), time.Now(), "cleanup finished", "deleted", 3)
	done()
	out := buf.String()
	if !strings.Contains(out, "cleanup finished") || !strings.Contains(out, "duration") {
		t.Errorf("timing log missing fields: %s", out)
	}
}
