package logger

import (
	"sync"

	"go.uber.org/zap"
)

const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	global *zap.SugaredLogger
	once   sync.Once
)

// Get returns the process logger. The level of the first call wins.
func Get(level string) *zap.SugaredLogger {
	once.Do(func() {
		global = newZapLogger(level)
	})
	return global
}
