// =============================================================================
// Ledger Normalizer - Logging
// =============================================================================
//
// Builds the process-wide slog logger from the main configuration. Records go
// to stderr, and to a log file as well when one is configured, so the console
// summary on stdout stays readable.
//
// =============================================================================

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
)

// Logger bundles the configured logger with the file it writes to.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New creates a logger for cfg writing to console and, if cfg.LogFile is
// set, appending to that file.
//
// PARAMETERS:
//   - cfg: The main configuration (LogLevel, LogFormat, LogFile).
//   - console: Usually os.Stderr.
//
// RETURNS:
//   - The logger. Call Close when done.
//   - An error if the log file cannot be opened or the format is unknown.
func New(cfg *config.MainConfig, console io.Writer) (*Logger, error) {
	output := console
	var file *os.File

	if cfg.LogFile != "" {
		var err error
		file, err = openLogFile(cfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = io.MultiWriter(console, file)
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}

	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "", "text":
		handler = slog.NewTextHandler(output, opts)
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		if file != nil {
			file.Close()
		}
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}

	return &Logger{Logger: slog.New(handler), file: file}, nil
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ParseLevel converts a level name to slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
