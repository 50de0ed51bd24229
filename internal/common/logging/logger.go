package logging

import (
	"context"
	"fmt"
	"os"
	"time"
)

// NewDefaultLogger builds a zap logger from DefaultLogConfig.
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(DefaultLogConfig())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger configures the global logger from LOG_LEVEL and LOG_FILE.
// When LOG_FILE is empty the gateway logs to stdout.
func InitGlobalLogger() {
	level := ParseLevel(os.Getenv("LOG_LEVEL"))
	config := LogConfig{
		Level:      level,
		TimeFormat: time.RFC3339,
	}

	logFileName := os.Getenv("LOG_FILE")
	if logFileName != "" {
		file, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			panic(fmt.Sprintf("failed to open log file %s: %v", logFileName, err))
		}
		config.Output = file
	}

	logger, err := NewZapLogger(config)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	SetGlobalLogger(logger)

	logger.Info("Logger initialized",
		String("level", level.String()),
		String("log_file", logFileName),
	)
}

// MustSync flushes buffered entries. Call before exit.
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

func Strings(key string, values []string) Field {
	return Field{Key: key, Value: values}
}

// Err creates an error field under the "error" key.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
