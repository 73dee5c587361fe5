// File: internal/observability/logger.go
package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/xkilldash9x/pagefinder/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// root holds the process-wide logger once initialized.
	root atomic.Pointer[zap.Logger]
	once sync.Once
	// rotator is kept so Close can release the log file handle.
	rotator *lumberjack.Logger
)

const ansiReset = "\x1b[0m"

var ansiColors = map[string]string{
	"black":   "\x1b[30m",
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
	"white":   "\x1b[37m",
}

// Initialize builds the global logger writing to console, and to a rotating JSON
// file when cfg.LogFile is set. Only the first call has any effect.
func Initialize(cfg config.LoggerConfig, console zapcore.WriteSyncer) {
	once.Do(func() {
		level := zap.NewAtomicLevel()
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level.SetLevel(zap.InfoLevel)
		}

		cores := []zapcore.Core{zapcore.NewCore(encoderFor(cfg), console, level)}
		if cfg.LogFile != "" {
			rotator = &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			}
			jsonEnc := encoderFor(config.LoggerConfig{Format: "json"})
			cores = append(cores, zapcore.NewCore(jsonEnc, zapcore.AddSync(rotator), level))
		}

		opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
		if cfg.AddSource {
			opts = append(opts, zap.AddCaller())
		}

		logger := zap.New(zapcore.NewTee(cores...), opts...)
		if cfg.ServiceName != "" {
			logger = logger.Named(cfg.ServiceName)
		}
		root.Store(logger)
		zap.ReplaceGlobals(logger)
	})
}

// InitializeLogger initializes the global logger with console output on stderr,
// keeping stdout free for command results.
func InitializeLogger(cfg config.LoggerConfig) {
	Initialize(cfg, zapcore.Lock(os.Stderr))
}

// InitializeWriter is Initialize for an arbitrary writer.
func InitializeWriter(cfg config.LoggerConfig, w io.Writer) {
	Initialize(cfg, zapcore.AddSync(w))
}

// ResetForTest clears the global logger so a test can initialize it again.
func ResetForTest() {
	root.Store(nil)
	once = sync.Once{}
	rotator = nil
}

// GetLogger returns the global logger, or a no-op logger before initialization.
func GetLogger() *zap.Logger {
	if l := root.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Component returns a child of the global logger named for one engine component.
func Component(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// Sync flushes buffered entries. Errors from syncing terminals are ignored.
func Sync() {
	l := root.Load()
	if l == nil {
		return
	}
	if err := l.Sync(); err != nil && !benignSyncError(err) {
		fmt.Fprintln(os.Stderr, "failed to sync logger:", err)
	}
}

// Close flushes and releases the rotating log file, if any.
func Close() error {
	Sync()
	if rotator != nil {
		return rotator.Close()
	}
	return nil
}

func benignSyncError(err error) bool {
	msg := err.Error()
	for _, s := range []string{"/dev/stdout", "/dev/stderr", "invalid argument", "inappropriate ioctl", "operation not supported"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func encoderFor(cfg config.LoggerConfig) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if cfg.Format != "console" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(ec)
	}

	ec.EncodeLevel = levelColorizer(cfg.Colors)
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + name + "]")
	}
	return zapcore.NewConsoleEncoder(ec)
}

// levelColorizer wraps the upper-case level name in the configured ANSI color.
func levelColorizer(colors config.ColorConfig) zapcore.LevelEncoder {
	byLevel := map[zapcore.Level]string{
		zapcore.DebugLevel:  colors.Debug,
		zapcore.InfoLevel:   colors.Info,
		zapcore.WarnLevel:   colors.Warn,
		zapcore.ErrorLevel:  colors.Error,
		zapcore.DPanicLevel: colors.DPanic,
		zapcore.PanicLevel:  colors.Panic,
		zapcore.FatalLevel:  colors.Fatal,
	}
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		name := strings.ToUpper(level.String())
		if code, ok := ansiColors[byLevel[level]]; ok {
			enc.AppendString(code + name + ansiReset)
			return
		}
		enc.AppendString(name)
	}
}
