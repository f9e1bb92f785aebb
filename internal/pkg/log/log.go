// Package log provides the Logger interface for all services in the repository,
// so the underlying zap implementation is hidden behind it.
package log

import (
	"io"

	"go.uber.org/zap/zapcore"
)

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

type Logger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)

	Debugf(template string, args ...any)
	Infof(template string, args ...any)
	Warnf(template string, args ...any)
	Errorf(template string, args ...any)

	// AddPrefix returns a new logger, all messages will be prefixed, e.g. "[task]".
	AddPrefix(prefix string) Logger
	DebugWriter() io.Writer

	Sync() error
}

// DebugLogger returns all logged messages as a string, used in tests.
type DebugLogger interface {
	Logger
	Truncate()
	AllMessages() string
	DebugMessages() string
	InfoMessages() string
	WarnMessages() string
	ErrorMessages() string
}
