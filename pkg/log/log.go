// Package log configures the process-wide slog logger.
package log

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Output selects where log records are written. An empty File writes to stderr.
type Output struct {
	File       string
	Format     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func ParseLevel(logLevel string) slog.Level {
	switch logLevel {
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

// Setup installs the default logger. With a file output the log is rotated by size; the
// returned closer releases it.
func Setup(logLevel string, output Output) io.Closer {
	var (
		writer io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)

	if output.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   output.File,
			MaxSize:    output.MaxSizeMB,
			MaxBackups: output.MaxBackups,
			MaxAge:     output.MaxAgeDays,
			Compress:   true,
		}

		writer = rotating
		closer = rotating
	}

	slog.SetDefault(slog.New(NewHandler(writer, output.Format, ParseLevel(logLevel))))

	return closer
}

// NewHandler returns a JSON handler for format "json" and a text handler otherwise.
func NewHandler(writer io.Writer, format string, level slog.Level) slog.Handler {
	options := &slog.HandlerOptions{Level: level}

	if format == "json" {
		return slog.NewJSONHandler(writer, options)
	}

	return slog.NewTextHandler(writer, options)
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
