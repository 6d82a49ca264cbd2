package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger     *zap.SugaredLogger
	loggerOnce sync.Once
	minLevel   = zapcore.InfoLevel
)

// initLogger builds the global zap logger writing structured lines to
// stderr with ISO 8601 timestamps.
func initLogger() {
	loggerOnce.Do(func() {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		config := zap.NewProductionConfig()
		config.EncoderConfig = encoderConfig
		config.Level = zap.NewAtomicLevelAt(minLevel)
		config.OutputPaths = []string{"stderr"}

		l, err := config.Build(zap.AddCallerSkip(1))
		if err != nil {
			l = zap.NewNop()
		}
		logger = l.Sugar()
	})
}

// SetDebug lowers the minimum level to DEBUG. Must be called before the
// first log line to take effect.
func SetDebug() {
	minLevel = zapcore.DebugLevel
}

func Debug(msg string, kv ...any) {
	initLogger()
	logger.Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	initLogger()
	logger.Infow(msg, kv...)
}

// Error logs msg with the error prepended to the key-value list.
func Error(msg string, err error, kv ...any) {
	initLogger()
	extended := append([]any{"err", err}, kv...)
	logger.Errorw(msg, extended...)
}
