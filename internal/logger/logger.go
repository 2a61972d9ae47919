package logger

import (
	"sync"
)

// Levels accepted by Get; anything else falls back to info.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide logger. The level from the first call wins;
// later calls return the same instance regardless of the argument.
func Get(level string) *Logger {
	once.Do(func() {
		if level == "" {
			level = InfoLevel
		}
		globalLogger = newZapLogger(level)
	})
	return globalLogger
}
