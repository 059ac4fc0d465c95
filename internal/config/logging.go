package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LogStderr as logging.file sends text logs to stderr. It is meant for the
// non-interactive modes; the TUI owns the terminal.
const LogStderr = "-"

// NewLogger builds the application logger described by cfg. Records carry
// the app name and version. The returned func releases the log file.
//
// An empty file discards all records.
func NewLogger(cfg LoggingConfig, version string) (*slog.Logger, func() error, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if cfg.File == LogStderr && format == "" {
		format = "text"
	}

	var newHandler func(io.Writer, *slog.HandlerOptions) slog.Handler
	switch format {
	case "", "json":
		newHandler = func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewJSONHandler(w, o) }
	case "text":
		newHandler = func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) }
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	w, closeFn, err := openLogDestination(cfg.File)
	if err != nil {
		return nil, nil, err
	}
	h := newHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("app", appName, "version", version), closeFn, nil
}

func openLogDestination(path string) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch path {
	case "":
		return io.Discard, noop, nil
	case LogStderr:
		return os.Stderr, noop, nil
	}

	if rest, ok := strings.CutPrefix(path, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("resolving log path %s: %w", path, err)
		}
		path = filepath.Join(home, rest)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, f.Close, nil
}

// parseLogLevel accepts slog level names in any case, with offsets such as
// "debug+2", and the "warning" alias. Empty means info.
func parseLogLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
