// Package logging provides config-driven categorized file-based logging for
// the randomizer. Logs are written as JSON lines to <workspace>/logs/ with a
// separate file per category. Nothing is written unless debug mode is on.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Boot/initialization
	CategoryCatalog   Category = "catalog"   // Stimulus table loading and parsing
	CategoryPairing   Category = "pairing"   // Complement pairing of round sets
	CategorySequencer Category = "sequencer" // Round/trial state transitions
	CategoryDatafile  Category = "datafile"  // Trial record sinks
	CategorySession   Category = "session"   // Participant session naming
	CategoryDriver    Category = "driver"    // Interactive terminal driver
	CategoryWatch     Category = "watch"     // Catalog file watcher
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string
	Categories map[string]bool
}

var (
	loggers   = make(map[Category]*zap.Logger)
	files     []*os.File
	loggersMu sync.RWMutex
	logsDir   string
	opts      Options
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	optsMu    sync.RWMutex
)

// Initialize sets up the logging directory under workspace.
// Should be called once at startup.
func Initialize(workspace string, o Options) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	optsMu.Lock()
	opts = o
	optsMu.Unlock()

	if err := level.UnmarshalText([]byte(o.Level)); err != nil || o.Level == "" {
		level.SetLevel(zapcore.InfoLevel)
	}

	if !o.DebugMode {
		return nil
	}

	dir := filepath.Join(workspace, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	loggersMu.Lock()
	logsDir = dir
	loggersMu.Unlock()

	Get(CategoryBoot).Info("logging initialized",
		zap.String("workspace", workspace),
		zap.String("dir", dir),
		zap.String("level", level.String()))
	return nil
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()

	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *zap.Logger {
	if !IsCategoryEnabled(category) {
		return zap.NewNop()
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	dir := logsDir
	loggersMu.RUnlock()

	if dir == "" {
		return zap.NewNop()
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return zap.NewNop()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), level)

	l := zap.New(core).Named(string(category))
	loggers[category] = l
	files = append(files, file)
	return l
}

// CloseAll flushes and closes every category log file.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		_ = l.Sync()
	}
	for _, f := range files {
		_ = f.Close()
	}
	loggers = make(map[Category]*zap.Logger)
	files = nil
	logsDir = ""
}
