/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{TraceLevel, "TRACE"},
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(999), "UNKNOWN"},
	}

	for _, test := range tests {
		if result := test.level.String(); result != test.expected {
			t.Errorf("Level.String() = %v, expected %v", result, test.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		level Level
		ok    bool
	}{
		{"trace", TraceLevel, true},
		{"DEBUG", DebugLevel, true},
		{"", InfoLevel, true},
		{"warning", WarnLevel, true},
		{" error ", ErrorLevel, true},
		{"verbose", InfoLevel, false},
	}
	for _, tt := range tests {
		level, ok := ParseLevel(tt.input)
		if level != tt.level || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = (%v, %v), expected (%v, %v)", tt.input, level, ok, tt.level, tt.ok)
		}
	}
}

func TestInitializeDefaultsComponent(t *testing.T) {
	if err := Initialize(Config{Level: InfoLevel}); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if defaultLogger == nil {
		t.Fatal("Initialize() did not set defaultLogger")
	}
	if defaultLogger.config.Component != "repopolicy" {
		t.Errorf("unexpected component %q", defaultLogger.config.Component)
	}
}

func TestLoggerPrettyFormatting(t *testing.T) {
	l := New(Config{Level: InfoLevel, Component: "test"})
	entry := LogEntry{
		Time:      time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Level:     "INFO",
		Message:   "test message",
		Component: "test",
		Fields:    map[string]interface{}{"zeta": 1, "alpha": "value"},
	}

	result := l.formatPretty(entry)
	expected := "2025-01-01 12:00:00 [INFO] test: test message {alpha=value, zeta=1}"
	if result != expected {
		t.Errorf("formatPretty() = %q, expected %q", result, expected)
	}
}

func TestLoggerNoOpMarker(t *testing.T) {
	l := New(Config{Level: InfoLevel, Component: "test", NoOp: true})
	entry := LogEntry{Time: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Level: "WARN", Message: "m", Component: "test"}
	if got := l.formatPretty(entry); !strings.Contains(got, "[NO-OP] m") {
		t.Errorf("expected no-op marker, got %q", got)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: WarnLevel, Output: &buf})

	l.Log(InfoLevel, "hidden")
	l.Log(ErrorLevel, "shown", Err(errors.New("boom")))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown {error=boom}") {
		t.Errorf("error message missing: %q", out)
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: InfoLevel, JSON: true, Component: "repopolicy", Output: &buf})
	l.Log(InfoLevel, "check finished", Strings("files", []string{"a", "b"}), Bool("changed", true))

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry.Message != "check finished" || entry.Component != "repopolicy" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.Fields["files"] != "a,b" || entry.Fields["changed"] != true {
		t.Errorf("unexpected fields %+v", entry.Fields)
	}
}

func TestSetOutputRedirectsDefaultLogger(t *testing.T) {
	if err := Initialize(Config{Level: DebugLevel}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	SetOutput(&buf)
	Debug("loaded settings", String("check", "vscode"))
	if !strings.Contains(buf.String(), "loaded settings {check=vscode}") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
