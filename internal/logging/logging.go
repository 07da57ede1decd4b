// Package logging provides per-module slog loggers with runtime-adjustable
// levels. Records fan out to stdout (text or JSON), the systemd journal when
// available, and an in-memory ring buffer that feeds the SSE log stream.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const ringCapacity = 1000

// Logger is a duck-typed interface satisfied by *slog.Logger.
// Use this instead of *slog.Logger to decouple from the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mu          sync.RWMutex
	cfg         Config
	initialized bool
	globalLevel = &slog.LevelVar{}
	loggers     = make(map[string]*slog.Logger)
	levelVars   = make(map[string]*slog.LevelVar)
	ring        *RingBuffer
	callback    EntryCallback
)

// Initialize sets up the logging system. Loggers created before Initialize
// are rebuilt so they pick up the full handler chain.
func Initialize(config Config) {
	mu.Lock()
	defer mu.Unlock()

	cfg = config
	initialized = true
	ring = NewRingBuffer(ringCapacity)

	level := parseLevel(config.Level, slog.LevelInfo)
	globalLevel.Set(level)

	for module, lv := range levelVars {
		moduleLevel := level
		if s, ok := config.Modules[module]; ok {
			moduleLevel = parseLevel(s, level)
		}
		lv.Set(moduleLevel)
		loggers[module] = slog.New(buildHandler(config.Format, lv)).With("module", module)
	}

	slog.SetDefault(slog.New(buildHandler(config.Format, globalLevel)))
}

// GetLogger returns the logger for a module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	if l, ok := loggers[module]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[module]; ok {
		return l
	}

	lv := &slog.LevelVar{}
	format := "text"
	if initialized {
		level := parseLevel(cfg.Level, slog.LevelInfo)
		if s, ok := cfg.Modules[module]; ok {
			level = parseLevel(s, level)
		}
		lv.Set(level)
		format = cfg.Format
	} else {
		lv.Set(slog.LevelInfo)
	}

	l := slog.New(buildHandler(format, lv)).With("module", module)
	loggers[module] = l
	levelVars[module] = lv
	return l
}

// GetBuffer returns the ring buffer holding recent log entries.
func GetBuffer() *RingBuffer {
	mu.RLock()
	defer mu.RUnlock()
	return ring
}

// SetCallback registers a callback invoked for every new log entry.
// Used to publish log events to the event bus without an import cycle.
func SetCallback(cb EntryCallback) {
	mu.Lock()
	defer mu.Unlock()
	callback = cb
}

// buildHandler assembles the handler chain for one logger.
func buildHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := []slog.Handler{stdout}
	if journalAvailable() {
		handlers = append(handlers, newJournalHandler(level))
	}
	handlers = append(handlers, newRingHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return multiHandler(handlers)
}

func parseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
