package log

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewServiceLogger creates a JSON logger for a service process.
// Debug messages are written only if verbose=true.
func NewServiceLogger(writer io.Writer, verbose bool) Logger {
	minLevel := InfoLevel
	if verbose {
		minLevel = DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.NameKey = "prefix"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(writer),
		zap.NewAtomicLevelAt(minLevel),
	)
	return loggerFromZapCore(core)
}

// NewNopLogger drops all messages.
func NewNopLogger() Logger {
	return loggerFromZapCore(zapcore.NewNopCore())
}
