// Package logger provides the shared logging facade for the player.
// All components log through here so the device shell can redirect or
// silence output in one place.
package logger

import (
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	mu   sync.RWMutex
	root = hclog.New(&hclog.LoggerOptions{
		Name:   "marquee",
		Level:  hclog.Info,
		Output: os.Stderr,
	})
)

// Configure replaces the root logger. Intended for the device shell at
// startup and for tests that want to capture output.
func Configure(opts *hclog.LoggerOptions) {
	mu.Lock()
	defer mu.Unlock()
	root = hclog.New(opts)
}

// SetLevel adjusts the level of the root logger in place.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	root.SetLevel(hclog.LevelFromString(level))
}

// Named returns a sub-logger for a component.
func Named(name string) hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(name)
}

// Debug logs debug messages with key/value pairs
func Debug(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Debug(msg, args...)
}

// Info logs informational messages with key/value pairs
func Info(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Info(msg, args...)
}

// Warn logs warning messages with key/value pairs
func Warn(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Warn(msg, args...)
}

// Error logs error messages with key/value pairs
func Error(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	root.Error(msg, args...)
}
