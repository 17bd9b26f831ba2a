package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu                  sync.RWMutex
	structuredLogger    *slog.Logger
	humanReadableLogger *slog.Logger
	levelVar            = new(slog.LevelVar)
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// replaceLevelNames renders the custom TRACE and FATAL levels by name.
func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the logging system with structured and human-readable loggers.
// Structured logs are JSON on stdout, human-readable logs are text on stderr.
func Init() {
	SetOutput(os.Stdout, os.Stderr)
}

// SetLevel sets the minimum logging level for both loggers.
func SetLevel(level slog.Level) {
	levelVar.Set(level)
}

// Level returns the current minimum logging level.
func Level() slog.Level {
	return levelVar.Level()
}

// SetOutput redirects logger output, e.g. to a file or a test buffer.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: levelVar, ReplaceAttr: replaceLevelNames}
	structuredLogger = slog.New(slog.NewJSONHandler(structuredOutput, opts))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadableOutput, opts))

	slog.SetDefault(humanReadableLogger)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable (Text) logger.
// Returns nil if Init() has not been called.
func HumanReadable() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return humanReadableLogger
}

// ForService creates a logger with the 'service' attribute added.
// Falls back to slog.Default() when Init() has not been called.
func ForService(serviceName string) *slog.Logger {
	mu.RLock()
	base := humanReadableLogger
	mu.RUnlock()
	if base == nil {
		base = slog.Default()
	}
	return base.With("service", serviceName)
}

// FileConfig holds rotation settings for file loggers.
type FileConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileConfig mirrors the defaults of the main.log config section.
var DefaultFileConfig = FileConfig{MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28}

// NewFileLogger creates a logger writing JSON logs to filePath with lumberjack rotation.
// It includes a 'service' attribute in all logs and returns a close function for the writer.
func NewFileLogger(filePath, serviceName string, level slog.Leveler, cfg FileConfig) (*slog.Logger, func() error, error) {
	// lumberjack doesn't create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = DefaultFileConfig.MaxSizeMB
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = DefaultFileConfig.MaxBackups
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = DefaultFileConfig.MaxAgeDays
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	fileHandler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})

	logger := slog.New(fileHandler).With("service", serviceName)

	return logger, logWriter.Close, nil
}

// TeeHandler fans out records to several handlers. It is used to mirror the
// console logger into the rotating log file.
type TeeHandler struct {
	handlers []slog.Handler
}

// NewTeeHandler returns a handler that writes every record to all handlers.
func NewTeeHandler(handlers ...slog.Handler) *TeeHandler {
	return &TeeHandler{handlers: handlers}
}

// Enabled reports whether any underlying handler is enabled for level.
func (t *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes the record to each enabled handler and joins their errors.
func (t *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("tee handler: %v", errs)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (t *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &TeeHandler{handlers: hs}
}

// WithGroup implements slog.Handler.
func (t *TeeHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &TeeHandler{handlers: hs}
}

// EnableFileMirror adds a rotating JSON log file next to the console output.
// The returned function closes the file.
func EnableFileMirror(filePath string, cfg FileConfig) (func() error, error) {
	fileLogger, closeFn, err := NewFileLogger(filePath, "photofinder", levelVar, cfg)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	console := humanReadableLogger
	if console == nil {
		console = slog.Default()
	}
	humanReadableLogger = slog.New(NewTeeHandler(console.Handler(), fileLogger.Handler()))
	slog.SetDefault(humanReadableLogger)

	return closeFn, nil
}
