package log

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewDebugLogger keeps all messages in memory, used in tests.
func NewDebugLogger() DebugLogger {
	out := &memoryWriter{}
	encoderCfg := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		NameKey:          "prefix",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: "  ",
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(out),
		zap.NewAtomicLevelAt(DebugLevel),
	)
	return &debugLogger{zapLogger: loggerFromZapCore(core), out: out}
}

type debugLogger struct {
	*zapLogger
	out *memoryWriter
}

func (l *debugLogger) AddPrefix(prefix string) Logger {
	return &debugLogger{zapLogger: l.zapLogger.AddPrefix(prefix).(*zapLogger), out: l.out}
}

func (l *debugLogger) Truncate() {
	l.out.Truncate()
}

func (l *debugLogger) AllMessages() string {
	return l.messages("")
}

func (l *debugLogger) DebugMessages() string {
	return l.messages("DEBUG")
}

func (l *debugLogger) InfoMessages() string {
	return l.messages("INFO")
}

func (l *debugLogger) WarnMessages() string {
	return l.messages("WARN")
}

func (l *debugLogger) ErrorMessages() string {
	return l.messages("ERROR")
}

func (l *debugLogger) messages(level string) string {
	_ = l.Sync()
	var out strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(l.out.String()))
	for scanner.Scan() {
		line := scanner.Text()
		if level == "" || strings.HasPrefix(line, level) {
			out.WriteString(line)
			out.WriteString("\n")
		}
	}
	return out.String()
}

type memoryWriter struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.buf.Write(p)
}

func (w *memoryWriter) String() string {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.buf.String()
}

func (w *memoryWriter) Truncate() {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.buf.Reset()
}

var _ fmt.Stringer = (*memoryWriter)(nil)
