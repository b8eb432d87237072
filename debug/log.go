package debug

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled atomic.Bool

	logger = newLogger()
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
		DisableColors:   true,
	})
	return l
}

// Enable starts debug logging to ~/.config/go-midiclock/debug.log
func Enable() error {
	mu.Lock()
	defer mu.Unlock()

	if enabled.Load() {
		return nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(homeDir, ".config", "go-midiclock")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	logger.SetOutput(f)
	enabled.Store(true)
	logger.WithField("cat", "debug").Info("=== Debug logging started ===")
	return nil
}

// EnableWriter sends debug logging to w instead of the log file (tests, TUI
// log panes).
func EnableWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	closeFile()
	logger.SetOutput(w)
	enabled.Store(true)
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	enabled.Store(false)
	logger.SetOutput(io.Discard)
	closeFile()
}

func closeFile() {
	if file != nil {
		file.Close()
		file = nil
	}
}

// Enabled reports whether logging is on.
func Enabled() bool { return enabled.Load() }

// SetLevel accepts "debug", "info", "warn" or "error".
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	return nil
}

// Log writes a message to the debug log
func Log(category, format string, args ...any) {
	if !enabled.Load() {
		return
	}
	logger.WithField("cat", category).Debugf(format, args...)
}

// Warn logs at warning level; these also reach the log when the level is
// raised above debug.
func Warn(category, format string, args ...any) {
	if !enabled.Load() {
		return
	}
	logger.WithField("cat", category).Warnf(format, args...)
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	if !enabled.Load() {
		return
	}
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if n <= 1 || count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}

// Fields logs a structured event.
func Fields(category, msg string, fields map[string]any) {
	if !enabled.Load() {
		return
	}
	logger.WithField("cat", category).WithFields(logrus.Fields(fields)).Debug(msg)
}
