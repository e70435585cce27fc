// Package debug provides the process-wide structured logger using log/slog
package debug

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	// logger is the global logger instance
	logger *slog.Logger
	// enabled indicates if debug logging is enabled
	enabled bool
	// mu protects the logger and enabled flag
	mu sync.RWMutex
)

func init() {
	Init(false)
}

// Options configures the global logger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means warn.
	Level string
	// JSON selects the JSON handler instead of text.
	JSON bool
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// Init initializes the logger.
// If enable is true, debug logs will be written to os.Stderr.
// If enable is false, only warnings and errors are written.
func Init(enable bool) {
	level := "warn"
	if enable {
		level = "debug"
	}
	Configure(Options{Level: level})
}

// Configure replaces the global logger.
func Configure(opts Options) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	lvl := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	mu.Lock()
	defer mu.Unlock()
	enabled = lvl <= slog.LevelDebug
	logger = slog.New(handler)
}

// Discard silences all output. Tests use it.
func Discard() {
	mu.Lock()
	defer mu.Unlock()
	enabled = false
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to a slog level, defaulting to warn.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Enabled returns whether debug logging is enabled
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// With returns a logger with the given attributes
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// Logger returns the underlying slog.Logger instance
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Or returns l, or the global logger when l is nil.
func Or(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return Logger()
}
