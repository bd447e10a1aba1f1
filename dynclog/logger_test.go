package dynclog

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": Debug,
		"info":  Info,
		"warn":  Warn,
		"error": Error,
		"none":  None,
		"bogus": Info,
	}
	for s, want := range cases {
		if got := ParseLevel(s); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestLoggerFiltersBelowMinimum(t *testing.T) {
	var buf bytes.Buffer
	l := New(Warn, &buf)

	l.Debug("should not appear")
	l.Info("should not appear either")
	if buf.Len() != 0 {
		t.Errorf("expected no output below minimum level, got %q", buf.String())
	}

	l.Warn("this warning shows")
	if !strings.Contains(buf.String(), "this warning shows") {
		t.Errorf("expected warn output, got %q", buf.String())
	}
}

func TestLoggerNoneDiscardsEverything(t *testing.T) {
	var buf bytes.Buffer
	l := New(None, &buf)

	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")

	if buf.Len() != 0 {
		t.Errorf("expected zero output at None level, got %q", buf.String())
	}
}

func TestLoggerErrorAlwaysShowsAtDebugMinimum(t *testing.T) {
	var buf bytes.Buffer
	l := New(Debug, &buf)
	l.Error("boom: %d", 7)
	if !strings.Contains(buf.String(), "boom: 7") {
		t.Errorf("expected formatted error message, got %q", buf.String())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Info("no panic please")
}
