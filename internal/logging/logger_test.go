package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerDefaults(t *testing.T) {
	logger := NewLogger(nil)
	if logger == nil {
		t.Fatal("NewLogger(nil) returned nil")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	if buf.Len() != 0 {
		t.Errorf("expected no output below configured level, got: %s", buf.String())
	}

	logger.Warn("visible warning")
	if !strings.Contains(buf.String(), "visible warning") {
		t.Errorf("expected warning in output, got: %s", buf.String())
	}
}

func TestLoggerWithPartition(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	partLogger := logger.WithPartition(3)
	partLogger.Info("volume exceeded")

	out := buf.String()
	if !strings.Contains(out, "partition=3") {
		t.Errorf("expected partition=3 in output, got: %s", out)
	}
	if !strings.Contains(out, "volume exceeded") {
		t.Errorf("expected message in output, got: %s", out)
	}
}

func TestLoggerWithRuntimeAndConn(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	l := logger.WithRuntime(1).WithConn(42)
	l.Debug("dispatching command", "cmd", "get")

	out := buf.String()
	for _, want := range []string{"runtime=1", "conn=42", "cmd=get", "dispatching command"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))

	Debug("debug message", "key", "value")
	if !strings.Contains(buf.String(), "debug message") || !strings.Contains(buf.String(), "key=value") {
		t.Errorf("unexpected output: %s", buf.String())
	}

	buf.Reset()
	Info("info message")
	if !strings.Contains(buf.String(), "info message") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelError, Output: &buf}))

	Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got: %s", buf.String())
	}

	SetLevel(LevelInfo)
	Info("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("expected output after SetLevel, got: %s", buf.String())
	}
}
