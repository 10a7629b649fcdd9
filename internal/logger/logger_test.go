package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", LevelInfo, false},
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarning, false},
		{"WARNING", LevelWarning, false},
		{" error ", LevelError, false},
		{"fatal", LevelFatal, false},
		{"loud", LevelInfo, true},
	}

	for _, tc := range tests {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevLevel := GetLevel()
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetLevel(prevLevel)
		SetSampleRate(1)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarning)

	Info("hidden")
	Warn("shown", "key", "value")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %s", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal(lines[0], &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "shown" || rec["key"] != "value" || rec["level"] != "WARN" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestTraceLevelName(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelTrace)

	Trace("deep")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["level"] != "TRACE" {
		t.Errorf("level = %v, want TRACE", rec["level"])
	}
}

func TestCountersIgnoreSampling(t *testing.T) {
	buf := captureOutput(t)
	SetSampleRate(1_000_000)

	beforeErr := TotalErrors.Load()
	beforeWarn := TotalWarnings.Load()
	for i := 0; i < 10; i++ {
		Error("boom")
		Warn("careful")
	}

	if got := TotalErrors.Load() - beforeErr; got != 10 {
		t.Errorf("TotalErrors grew by %d, want 10", got)
	}
	if got := TotalWarnings.Load() - beforeWarn; got != 10 {
		t.Errorf("TotalWarnings grew by %d, want 10", got)
	}
	if buf.Len() > 0 && bytes.Count(buf.Bytes(), []byte("\n")) >= 20 {
		t.Error("sampling should suppress most output")
	}
}
