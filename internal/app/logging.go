package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger. With LogFile set, output is teed into
// a rotating file next to stdout. The returned closer flushes that file and
// is never nil.
func NewLogger(cfg Config) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if file := strings.TrimSpace(cfg.LogFile); file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			slog.Default().Warn("log file disabled",
				slog.String("file", file),
				slog.String("error", err.Error()),
			)
		} else {
			rotating := &lumberjack.Logger{
				Filename:   file,
				MaxSize:    cfg.LogFileMaxMB,
				MaxBackups: cfg.LogFileMaxBackups,
				MaxAge:     cfg.LogFileMaxAgeDays,
				Compress:   cfg.LogFileCompress,
			}
			out = io.MultiWriter(os.Stdout, rotating)
			closer = rotating
		}
	}
	return newLogger(out, cfg.LogLevel, cfg.LogFormat), closer
}

func newLogger(out io.Writer, levelRaw, formatRaw string) *slog.Logger {
	options := &slog.HandlerOptions{Level: parseLogLevel(levelRaw)}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(out, options))
	}
	return slog.New(slog.NewTextHandler(out, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
