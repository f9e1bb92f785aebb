// Package httpserver runs an HTTP server with graceful shutdown
// integrated into the process lifecycle.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/service/common/servicectx"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

const (
	readHeaderTimeout       = 10 * time.Second
	gracefulShutdownTimeout = 30 * time.Second
)

type Config struct {
	ListenAddress string
}

type dependencies interface {
	Logger() log.Logger
	Process() *servicectx.Process
}

// Start begins serving requests, the server stops gracefully on process shutdown.
// Streaming responses stay open until the handler finishes,
// so no write timeout is set.
func Start(d dependencies, cfg Config, handler http.Handler) {
	logger := d.Logger().AddPrefix("[http-server]")
	proc := d.Process()

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	proc.Add(func(ctx context.Context, errCh chan<- error) {
		logger.Infof(`starting HTTP server on "%s"`, cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.PrefixError(err, "HTTP server failed")
		}
	})

	proc.OnShutdown(func() {
		logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf("cannot shutdown HTTP server: %s", err)
			return
		}
		logger.Info("HTTP server shutdown done")
	})
}
