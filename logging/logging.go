// Package logging adapts a zap logger to the types.Logger interface used by
// every other package.
package logging

import (
	"fmt"

	"github.com/slackmgr/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger implements types.Logger on top of a zap SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
}

var _ types.Logger = (*Logger)(nil)

// New builds a production JSON logger at the given level ("debug", "info",
// "warn", "error"). An unknown level is an error.
func New(level string) (*Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return Wrap(logger), nil
}

// Wrap adapts an existing zap logger.
func Wrap(logger *zap.Logger) *Logger {
	return &Logger{sugar: logger.Sugar()}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync() //nolint:wrapcheck
}

//nolint:ireturn // Must return interface to implement types.Logger
func (l *Logger) WithField(key string, value any) types.Logger {
	return &Logger{sugar: l.sugar.With(key, value)}
}

//nolint:ireturn // Must return interface to implement types.Logger
func (l *Logger) WithFields(fields map[string]any) types.Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}

	return &Logger{sugar: l.sugar.With(args...)}
}

func (l *Logger) Debug(msg string)                  { l.sugar.Debug(msg) }
func (l *Logger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(msg string)                   { l.sugar.Info(msg) }
func (l *Logger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(msg string)                   { l.sugar.Warn(msg) }
func (l *Logger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(msg string)                  { l.sugar.Error(msg) }
func (l *Logger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }
func (l *Logger) Fatal(msg string)                  { l.sugar.Fatal(msg) }
func (l *Logger) Fatalf(format string, args ...any) { l.sugar.Fatalf(format, args...) }
