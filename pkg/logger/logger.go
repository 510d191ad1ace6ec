package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LevelBasedMuxHandler writes every record to stdout and records at or
// above fileLevel to the file handler as well.
type LevelBasedMuxHandler struct {
	stdoutHandler slog.Handler
	fileHandler   slog.Handler
	fileLevel     slog.Level
}

type LoggerWithFile struct {
	Logger  *slog.Logger
	LogFile *os.File
}

func NewLevelBasedMuxHandler(stdout, file io.Writer, level slog.Level) *LevelBasedMuxHandler {
	return &LevelBasedMuxHandler{
		stdoutHandler: slog.NewJSONHandler(stdout, &slog.HandlerOptions{
			Level:     level,
			AddSource: false,
		}),

		fileHandler: slog.NewJSONHandler(file, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}),
		fileLevel: level,
	}
}

func (h *LevelBasedMuxHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.stdoutHandler.Enabled(ctx, level) || h.fileHandler.Enabled(ctx, level)
}

func (h *LevelBasedMuxHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.fileLevel && h.fileHandler.Enabled(ctx, r.Level) {
		if err := h.fileHandler.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}

	if !h.stdoutHandler.Enabled(ctx, r.Level) {
		return nil
	}
	return h.stdoutHandler.Handle(ctx, r)
}

func (h *LevelBasedMuxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelBasedMuxHandler{
		stdoutHandler: h.stdoutHandler.WithAttrs(attrs),
		fileHandler:   h.fileHandler.WithAttrs(attrs),
		fileLevel:     h.fileLevel,
	}
}

func (h *LevelBasedMuxHandler) WithGroup(name string) slog.Handler {
	return &LevelBasedMuxHandler{
		stdoutHandler: h.stdoutHandler.WithGroup(name),
		fileHandler:   h.fileHandler.WithGroup(name),
		fileLevel:     h.fileLevel,
	}
}

func NewLoggerWithFile(fileName string, level slog.Level) (*LoggerWithFile, error) {
	logFile, err := openLogFile(fileName, os.O_APPEND)
	if err != nil {
		return nil, err
	}

	handler := NewLevelBasedMuxHandler(os.Stdout, logFile, level)
	return &LoggerWithFile{
		Logger:  slog.New(handler),
		LogFile: logFile,
	}, nil
}

// NewRunLogger creates a fresh text log file for one run and returns a
// logger writing to it and to parent.
func NewRunLogger(parent *slog.Logger, fileName string) (*LoggerWithFile, error) {
	logFile, err := openLogFile(fileName, os.O_TRUNC)
	if err != nil {
		return nil, err
	}

	handler := &LevelBasedMuxHandler{
		stdoutHandler: parent.Handler(),
		fileHandler: slog.NewTextHandler(logFile, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}),
		fileLevel: slog.LevelInfo,
	}
	return &LoggerWithFile{
		Logger:  slog.New(handler),
		LogFile: logFile,
	}, nil
}

func (l *LoggerWithFile) Close() error {
	if l.LogFile == nil {
		return nil
	}
	return l.LogFile.Close()
}

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func openLogFile(fileName string, mode int) (*os.File, error) {
	if dir := filepath.Dir(fileName); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(fileName, mode|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", fileName, err)
	}
	return f, nil
}
