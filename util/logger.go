package util

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	appLogger  *zap.Logger
	loggerOnce sync.Once
)

// InitLogger builds the process-wide zap logger. Production uses JSON with ISO8601
// timestamps; every other environment gets a colored console encoder.
func InitLogger(environment, level, format string) *zap.Logger {
	loggerOnce.Do(func() {
		var cfg zap.Config
		if environment == "production" {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "timestamp"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
			cfg.DisableStacktrace = true
		} else {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.Level = zap.NewAtomicLevelAt(parseLogLevel(level))
		if format == "json" {
			cfg.Encoding = "json"
		} else {
			cfg.Encoding = "console"
		}
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}

		l, err := cfg.Build(zap.AddCaller())
		if err != nil {
			l = zap.NewNop()
		}
		appLogger = l
		zap.ReplaceGlobals(appLogger)
	})
	return appLogger
}

// Logger returns the process logger, or a no-op logger before InitLogger runs.
func Logger() *zap.Logger {
	if appLogger == nil {
		return zap.NewNop()
	}
	return appLogger
}

// SetLoggerForTest swaps the process logger; pass nil to restore the no-op default.
func SetLoggerForTest(l *zap.Logger) {
	appLogger = l
}

// SyncLogger flushes any buffered log entries.
func SyncLogger() {
	if appLogger != nil {
		_ = appLogger.Sync()
	}
}

func parseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
