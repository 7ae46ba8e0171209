package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "warn", Output: &buf})

	l.Info("quiet").Send()
	l.Warn("loud").Send()

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("expected info event suppressed at warn level, got %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("expected warn event emitted, got %q", out)
	}
}

func TestNewLoggerUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "verbose", Output: &buf})

	l.Debug("hidden").Send()
	l.Info("shown").Send()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug suppressed under the info fallback, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("expected info emitted under the fallback, got %q", out)
	}
}

func TestLogGrpcRequestTagsComponentAndError(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "info", Output: &buf})

	l.LogGrpcRequest("/horizondb.v1.Storage/Get", 5*time.Millisecond, nil)
	if !strings.Contains(buf.String(), `"component":"grpc"`) {
		t.Fatalf("expected grpc component field, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"level":"info"`) {
		t.Fatalf("expected success logged at info level, got %q", buf.String())
	}

	buf.Reset()
	l.LogGrpcRequest("/horizondb.v1.Storage/Get", 5*time.Millisecond, errors.New("boom"))
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected failure logged at error level, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("expected handler error attached, got %q", buf.String())
	}
}
