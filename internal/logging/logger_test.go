package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn, "text")

	logger.Info("should be dropped")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Error("info record leaked through warn-level logger")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn record missing from output")
	}
}

func TestOpenRunLog_CreatesTimestampedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2023, 6, 1, 12, 30, 45, 0, time.UTC)

	run, err := OpenRunLog(dir, now)
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}
	defer run.Close()

	want := filepath.Join(dir, "harvest_20230601_123045.log")
	if run.Path != want {
		t.Errorf("run log path = %s, want %s", run.Path, want)
	}
	if _, err := os.Stat(run.Path); err != nil {
		t.Errorf("run log file not created: %v", err)
	}
}

func TestTee_WritesBothOutputs(t *testing.T) {
	var buf bytes.Buffer
	run, err := OpenRunLog(t.TempDir(), time.Now())
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}

	logger := Tee(&buf, run, slog.LevelInfo, "text")
	logger.Info("processed position", "id", "EOR-1")

	if err := run.Close(); err != nil {
		t.Fatalf("close run log: %v", err)
	}

	if !strings.Contains(buf.String(), "processed position") {
		t.Error("record missing from base writer")
	}

	data, err := os.ReadFile(run.Path)
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	if !strings.Contains(string(data), "processed position") {
		t.Error("record missing from run log file")
	}
}
