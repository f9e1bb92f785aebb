package httpserver

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/keenai/agent-chat/internal/pkg/log"
)

type Middleware func(next http.Handler) http.Handler

// Wrap applies middlewares to the handler, the first one is the outermost.
func Wrap(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// RequestLogger logs each finished request.
func RequestLogger(logger log.Logger) Middleware {
	logger = logger.AddPrefix("[http]")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			startTime := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, req)
			logger.Infof(`%s %s %d %s`, req.Method, req.URL.Path, wrapped.status, time.Since(startTime))
		})
	}
}

// Recovery converts a handler panic into a 500 response.
func Recovery(logger log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				if panicErr := recover(); panicErr != nil {
					logger.Errorf("panic in handler %s %s: %s, stacktrace: %s", req.Method, req.URL.Path, panicErr, string(debug.Stack()))
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, req)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush passes flushing through to the underlying writer,
// streaming handlers depend on it.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
