package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Logger defines the interface for logging throughout the application.
// Different implementations can be used for different contexts (console, silent, file, etc.)
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// ConsoleLogger writes human-readable logs to stdout/stderr.
// Used for normal operation and debugging.
type ConsoleLogger struct {
	verbose bool
}

func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{}
}

// SetVerbose enables debug output.
func (c *ConsoleLogger) SetVerbose(verbose bool) {
	c.verbose = verbose
}

func (c *ConsoleLogger) Info(msg string, args ...interface{}) {
	fmt.Printf("[INFO] "+msg+"\n", args...)
}

func (c *ConsoleLogger) Warn(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[WARN] "+msg+"\n", args...)
}

func (c *ConsoleLogger) Error(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[ERROR] "+msg+"\n", args...)
}

func (c *ConsoleLogger) Debug(msg string, args ...interface{}) {
	if !c.verbose {
		return
	}
	fmt.Printf("[DEBUG] "+msg+"\n", args...)
}

// SilentLogger discards all log messages.
// Used when running in TUI mode without a log file.
type SilentLogger struct{}

func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

func (s *SilentLogger) Info(msg string, args ...interface{})  {}
func (s *SilentLogger) Warn(msg string, args ...interface{})  {}
func (s *SilentLogger) Error(msg string, args ...interface{}) {}
func (s *SilentLogger) Debug(msg string, args ...interface{}) {}

// FileLogger appends timestamped lines to a writer, typically a log file.
// Used by the TUI so logging does not interfere with the display.
type FileLogger struct {
	mu     sync.Mutex
	logger *log.Logger
	closer io.Closer
}

// NewFileLogger opens (or creates) path for appending.
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &FileLogger{logger: log.New(f, "", log.LstdFlags), closer: f}, nil
}

// NewWriterLogger logs to w without owning it.
func NewWriterLogger(w io.Writer) *FileLogger {
	return &FileLogger{logger: log.New(w, "", log.LstdFlags)}
}

func (f *FileLogger) write(level, msg string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logger.Printf("["+level+"] "+msg, args...)
}

func (f *FileLogger) Info(msg string, args ...interface{})  { f.write("INFO", msg, args...) }
func (f *FileLogger) Warn(msg string, args ...interface{})  { f.write("WARN", msg, args...) }
func (f *FileLogger) Error(msg string, args ...interface{}) { f.write("ERROR", msg, args...) }
func (f *FileLogger) Debug(msg string, args ...interface{}) { f.write("DEBUG", msg, args...) }

// Close closes the underlying file, if the logger owns one.
func (f *FileLogger) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
