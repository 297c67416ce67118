package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	l.Info("poll %d done", 3)
	l.Warn("slow")
	l.Error("failed: %s", "boom")
	l.Debug("detail")

	out := buf.String()
	for _, want := range []string{"[INFO] poll 3 done", "[WARN] slow", "[ERROR] failed: boom", "[DEBUG] detail"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestFileLogger_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "buildwatch.log")

	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	l.Info("first")
	l.Close()

	l, err = NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() reopen error = %v", err)
	}
	l.Info("second")
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "first") || !strings.Contains(string(data), "second") {
		t.Errorf("log file = %q, want both lines", data)
	}
}

func TestLoggersSatisfyInterface(t *testing.T) {
	var _ Logger = NewConsoleLogger()
	var _ Logger = NewSilentLogger()
	var _ Logger = NewWriterLogger(&bytes.Buffer{})
}
