package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/geogotchi/geogotchi/internal/config"
)

const (
	fileMaxSizeMB  = 10
	fileMaxBackups = 3
	fileMaxAgeDays = 14
)

// Cleanup releases the log file, if any.
type Cleanup func() error

// New builds the CLI logger. Records go to stderr so stdout stays reserved for
// command output; cfg.File adds a rotated file sink.
func New(cfg config.LoggingConfig) (*slog.Logger, Cleanup, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.LoggingConfig, console io.Writer) (*slog.Logger, Cleanup, error) {
	handlerOptions := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	writers := []io.Writer{console}
	var file *lumberjack.Logger
	if cfg.File != "" {
		dir := filepath.Dir(cfg.File)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, err
			}
		}
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    fileMaxSizeMB,
			MaxBackups: fileMaxBackups,
			MaxAge:     fileMaxAgeDays,
		}
		writers = append(writers, file)
	}

	multi := io.MultiWriter(writers...)
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(multi, handlerOptions)
	default:
		handler = slog.NewTextHandler(multi, handlerOptions)
	}

	cleanup := func() error {
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return slog.New(handler), cleanup, nil
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
