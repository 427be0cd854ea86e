package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Logger wraps slog.Logger so components share one structured logger
// configured once at startup.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to w with the given level and format.
// format can be "text" or "json" (default text).
func New(w io.Writer, level slog.Level, format string) *Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default returns a logger around slog.Default
func Default() *Logger {
	return &Logger{Logger: slog.Default()}
}

// With returns a new logger with the given attributes added
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ParseLevel converts a string log level to slog.Level.
// Unknown values fall back to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RunLog is a per-invocation log file. Every harvest run opens one,
// mirrors all records into it, and closes it when the run ends.
type RunLog struct {
	Path string
	file *os.File
}

// OpenRunLog creates a timestamped log file under dir, creating the
// directory if needed.
func OpenRunLog(dir string, now time.Time) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("harvest_%s.log", now.Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}

	return &RunLog{Path: path, file: f}, nil
}

// Writer returns the underlying file writer
func (r *RunLog) Writer() io.Writer {
	return r.file
}

// Close detaches the run log
func (r *RunLog) Close() error {
	return r.file.Close()
}

// Tee returns a logger that writes to both base and the run log file.
func Tee(base io.Writer, run *RunLog, level slog.Level, format string) *Logger {
	return New(io.MultiWriter(base, run.Writer()), level, format)
}
