// Copyright (C) 2026 Linux Lite (www.linuxliteos.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for the upgrade tool.
//
// Output goes to two places at once: stderr in human-readable text
// for the operator watching the terminal, and a JSON file for support
// to read after the fact. The file survives the upgrade itself, which
// is the whole point; when a dist-upgrade goes sideways the terminal
// scrollback is usually gone.
//
// Basic usage:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogFile: logging.LogPathFor(os.Geteuid()),
//	})
//	defer logger.Close()
//	logger.Info("upgrade started", "mode", "real")
//
// Logger does not redact anything. Apt output and file paths are fine
// to log; do not pass user credentials through it.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// DefaultLogPath is the log location when running as root.
const DefaultLogPath = "/var/log/ll-series-upgrade.log"

// LogPathFor returns the log file location for the given effective
// UID. Unprivileged runs (dry-run as a normal user) cannot write
// under /var/log, so they land in the temp directory instead.
func LogPathFor(euid int) string {
	if euid == 0 {
		return DefaultLogPath
	}
	return filepath.Join(os.TempDir(), "ll-series-upgrade.log")
}

// Level is the minimum severity a message needs to be emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level name in upper case.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a Level. Unknown strings come
// back as LevelInfo with an error so a typo in the config file does
// not silence the log.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures a Logger. The zero value logs Info and above to
// stderr in text format with no file.
type Config struct {
	// Level is the minimum severity to emit.
	Level Level

	// LogFile, when set, receives every entry as one JSON object per
	// line. The parent directory is created if missing. A file that
	// cannot be opened disables file logging rather than failing the
	// run; an upgrade should not abort because /var/log is read-only.
	LogFile string

	// JSON switches stderr output from text to JSON. The file is
	// always JSON regardless.
	JSON bool

	// Quiet drops stderr output entirely. Used by the HTTP server
	// mode where the terminal belongs to the frontend.
	Quiet bool
}

// Logger wraps slog with stderr and file fan-out.
type Logger struct {
	slog *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New builds a Logger per config. Call Close when done so the file
// is flushed.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	l := &Logger{}
	if config.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.LogFile), 0o755); err == nil {
			f, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
			if err == nil {
				l.file = f
				handlers = append(handlers, slog.NewJSONHandler(f, opts))
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	l.slog = slog.New(handler)
	return l
}

// Default returns a stderr-only Logger at Info level.
func Default() *Logger {
	return New(Config{Level: LevelInfo})
}

// Debug logs at Debug level with slog-style key-value pairs.
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }

// Info logs at Info level.
func (l *Logger) Info(msg string, args ...any) { l.slog.Info(msg, args...) }

// Warn logs at Warn level.
func (l *Logger) Warn(msg string, args ...any) { l.slog.Warn(msg, args...) }

// Error logs at Error level.
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child Logger carrying extra attributes. The file
// handle stays owned by the parent; close only the parent.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// Slog exposes the underlying slog.Logger for callers that need
// handler-level access.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file, if one is open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// multiHandler fans one record out to several slog handlers, so
// stderr can stay text while the file gets JSON.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
