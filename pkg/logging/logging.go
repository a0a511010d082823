// Package logging configures the process-wide structured logger and
// scopes it per component. Every long-lived object (accelerator,
// drive, balancer, monitor, bridge) carries a component-tagged
// *slog.Logger handed down from its constructor.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Attribute keys shared across components so log lines stay
// grep-able: one vocabulary for "which component", "which operation",
// and "which drive".
const (
	LogComponent = "component"
	LogOperation = "operation"
	LogDriveID   = "drive_id"
)

// InitLogger builds the process logger from the LOG_LEVEL environment
// variable (debug, info, warn, error; default info) and installs it
// as the slog default.
func InitLogger() (*slog.Logger, error) {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := parseLevel(levelStr)
	if err != nil {
		return nil, err
	}

	logger := newTextLogger(os.Stdout, level)
	slog.SetDefault(logger)
	return logger, nil
}

// NewTestLogger returns a logger for tests. With discard set, output
// is swallowed; otherwise it goes to stdout at the given level so a
// failing test can be rerun verbosely.
func NewTestLogger(level slog.Level, discard bool) *slog.Logger {
	if discard {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return newTextLogger(os.Stdout, level)
}

// ComponentLogger scopes a logger to one component, with any extra
// identifying attributes appended (e.g. the drive id).
func ComponentLogger(logger *slog.Logger, component string, kvs ...any) *slog.Logger {
	return logger.With(append(kvs, slog.String(LogComponent, component))...)
}

func newTextLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", s)
	}
}
