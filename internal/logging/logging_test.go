package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "WARN", Output: &buf})
	defer Init(Config{})

	Debug().Msg("debug message")
	Info().Msg("info message")
	Warn().Msg("warn message")

	out := buf.String()
	if strings.Contains(out, "info message") {
		t.Error("info should be filtered at WARN level")
	}
	if !strings.Contains(out, "warn message") {
		t.Error("warn should be emitted at WARN level")
	}
}

func TestInitUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "verbose", Output: &buf})
	defer Init(Config{})

	Info().Str("component", "test").Msg("hello")
	if !strings.Contains(buf.String(), `"component":"test"`) {
		t.Errorf("expected structured output, got %q", buf.String())
	}
}
