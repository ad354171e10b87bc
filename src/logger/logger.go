// Package logger provides the printf-style logging interface used by the
// agents and commands, backed by log/slog.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger defines the interface for logging throughout the application.
// Different implementations can be used for different contexts (console, silent, structured, etc.)
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options configure a ConsoleLogger.
type Options struct {
	Level  slog.Level
	Format string    // FormatText or FormatJSON
	Writer io.Writer // defaults to stderr
}

// ConsoleLogger writes logs through a slog handler. Output goes to stderr by
// default so command output on stdout stays machine-readable.
type ConsoleLogger struct {
	log *slog.Logger
}

// NewConsoleLogger returns an info-level text logger on stderr.
func NewConsoleLogger() *ConsoleLogger {
	return New(Options{Level: slog.LevelInfo})
}

// New builds a ConsoleLogger from opts.
func New(opts Options) *ConsoleLogger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: opts.Level}

	var h slog.Handler
	if strings.EqualFold(opts.Format, FormatJSON) {
		h = slog.NewJSONHandler(w, ho)
	} else {
		h = slog.NewTextHandler(w, ho)
	}
	return &ConsoleLogger{log: slog.New(h)}
}

func (c *ConsoleLogger) Info(msg string, args ...interface{}) {
	c.emit(slog.LevelInfo, msg, args)
}

func (c *ConsoleLogger) Error(msg string, args ...interface{}) {
	c.emit(slog.LevelError, msg, args)
}

func (c *ConsoleLogger) Debug(msg string, args ...interface{}) {
	c.emit(slog.LevelDebug, msg, args)
}

func (c *ConsoleLogger) emit(level slog.Level, msg string, args []interface{}) {
	ctx := context.Background()
	if !c.log.Enabled(ctx, level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	c.log.Log(ctx, level, msg)
}

// Slog exposes the underlying structured logger.
func (c *ConsoleLogger) Slog() *slog.Logger {
	return c.log
}

// ParseLevel converts debug, info, warn or error (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// SilentLogger discards all log messages.
// Used when running in TUI or MCP stdio mode to prevent log output from
// interfering with the display or the protocol stream.
type SilentLogger struct{}

func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

func (s *SilentLogger) Info(msg string, args ...interface{})  {}
func (s *SilentLogger) Error(msg string, args ...interface{}) {}
func (s *SilentLogger) Debug(msg string, args ...interface{}) {}
