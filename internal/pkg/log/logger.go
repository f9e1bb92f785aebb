package log

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger is the default implementation of the Logger interface.
type zapLogger struct {
	*zap.SugaredLogger
	core   zapcore.Core
	prefix string
}

func loggerFromZapCore(core zapcore.Core, opts ...zap.Option) *zapLogger {
	return &zapLogger{SugaredLogger: zap.New(core, opts...).Sugar(), core: core}
}

func (l *zapLogger) AddPrefix(prefix string) Logger {
	prefix = l.prefix + prefix
	clone := loggerFromZapCore(l.core)
	clone.prefix = prefix
	clone.SugaredLogger = clone.SugaredLogger.Named(prefix)
	return clone
}

func (l *zapLogger) DebugWriter() io.Writer {
	return &levelWriter{logger: l, level: DebugLevel}
}

// levelWriter writes each line as a log message with the given level.
type levelWriter struct {
	logger *zapLogger
	level  zapcore.Level
}

func (w *levelWriter) Write(p []byte) (int, error) {
	msg := string(p)
	if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	switch w.level {
	case DebugLevel:
		w.logger.Debug(msg)
	case InfoLevel:
		w.logger.Info(msg)
	case WarnLevel:
		w.logger.Warn(msg)
	default:
		w.logger.Error(msg)
	}
	return len(p), nil
}
