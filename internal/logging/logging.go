package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/lmittmann/tint"
)

var (
	disabled atomic.Bool
	level    = new(slog.LevelVar)
	current  atomic.Pointer[slog.Logger]
)

func init() {
	current.Store(newLogger(os.Stderr))
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
}

// SetOutput redirects log output (tests, log files).
func SetOutput(w io.Writer) {
	current.Store(newLogger(w))
}

// SetLevel sets the minimum level by name: debug, info, warn, error.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// Disable turns off all logging
func Disable() {
	disabled.Store(true)
}

// Enable turns logging back on
func Enable() {
	disabled.Store(false)
}

// L returns the underlying structured logger.
func L() *slog.Logger {
	return current.Load()
}

// Infof logs a formatted info message
func Infof(format string, v ...any) {
	if !disabled.Load() {
		L().Info(fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error message
func Errorf(format string, v ...any) {
	if !disabled.Load() {
		L().Error(fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...any) {
	if !disabled.Load() {
		L().Warn(fmt.Sprintf(format, v...))
	}
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...any) {
	if !disabled.Load() {
		L().Debug(fmt.Sprintf(format, v...))
	}
}
