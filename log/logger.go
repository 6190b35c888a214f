// Package log provides structured logging for the reporter.
//
// All log entries carry a generated session_id field so that interleaved
// output from concurrent acquisitions can be told apart downstream.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a CLI level name to a zap level.
// Accepted names: debug, info, warnings, errors, critical.
func ParseLevel(name string) (zapcore.Level, error) {
	switch name {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warnings":
		return zapcore.WarnLevel, nil
	case "errors":
		return zapcore.ErrorLevel, nil
	case "critical":
		return zapcore.DPanicLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (use debug, info, warnings, errors, critical)", name)
	}
}

// Logger provides structured logging with session context.
type Logger struct {
	zap *zap.Logger
}

// NewLogger creates a logger writing JSON entries at or above level to w.
// Output defaults to os.Stderr when w is nil.
func NewLogger(level zapcore.Level, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)

	zapLogger := zap.New(core).With(zap.String("session_id", uuid.New().String()))
	return &Logger{zap: zapLogger}
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Critical logs a critical message. The entry is emitted at zap's DPanic
// level, which does not panic outside development mode.
func (l *Logger) Critical(message string, fields map[string]any) {
	l.zap.DPanic(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries. Errors from syncing console streams are
// unactionable and discarded by callers.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}
