package logger

import (
	"strings"
	"sync"
)

// Log levels accepted in configuration.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	// globalLogger holds the process-wide logger used by cmd.
	globalLogger *Logger
	once         sync.Once
)

// Get returns a singleton logger configured with the provided level.
// The first call initializes the logger; subsequent calls ignore the level
// and return the already initialized instance.
func Get(level string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(normalizeLevel(level))
	})
	return globalLogger
}

// New builds an independent logger; components receive it at construction.
func New(level string) *Logger {
	return newZapLogger(normalizeLevel(level))
}

// SetLevel changes the level of a logger built by this package.
func (l *Logger) SetLevel(level string) {
	if l == nil || l.level == nil {
		return
	}
	l.level.SetLevel(toZapLevel(normalizeLevel(level)))
}

func normalizeLevel(level string) string {
	return strings.ToLower(strings.TrimSpace(level))
}
