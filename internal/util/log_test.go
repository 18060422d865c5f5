package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"trace": LevelTrace,
		"TRACE": LevelTrace,
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
	}

	for input, want := range tests {
		if got := ParseLogLevel(input); got != want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}

	if got := ParseLogLevel("unknown"); got != LevelInfo {
		t.Fatalf("ParseLogLevel default = %v, want %v", got, LevelInfo)
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LevelWarn, &buf)
	logger.Debugf("hidden %d", 1)
	logger.Warnf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 2") {
		t.Fatalf("expected warn line, got %q", out)
	}
}

func TestNamedLoggerSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter(LevelInfo, &buf)
	child := parent.Named("rules").Named("icons")

	child.Tracef("before")
	parent.SetLevel(LevelTrace)
	child.Tracef("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Fatalf("trace line written before level change: %q", out)
	}
	if !strings.Contains(out, "[TRACE] rules.icons: after") {
		t.Fatalf("expected named trace line, got %q", out)
	}
}
