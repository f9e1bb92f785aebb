package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/keenai/agent-chat/internal/pkg/env"
	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/api"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/config"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/dependencies"
	"github.com/keenai/agent-chat/internal/pkg/service/common/httpserver"
	"github.com/keenai/agent-chat/internal/pkg/service/common/servicectx"
	"github.com/keenai/agent-chat/internal/pkg/telemetry"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

func main() {
	if err := run(); err != nil {
		fmt.Println(errors.PrefixError(err, "fatal error").Error()) // nolint:forbidigo
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration.
	envs := env.FromOs()
	if err := envs.LoadDotEnv(".env"); err != nil {
		return errors.PrefixError(err, "cannot load .env file")
	}
	cfg, err := config.LoadFrom(os.Args, envs)
	if errors.Is(err, pflag.ErrHelp) {
		// Stop on the --help flag.
		return nil
	} else if err != nil {
		return err
	}

	// Create logger.
	logger := log.NewServiceLogger(os.Stderr, cfg.Debug).AddPrefix("[agent-chat-api]")

	// Create process abstraction.
	proc, err := servicectx.New(ctx, cancel, servicectx.WithLogger(logger))
	if err != nil {
		return err
	}

	// Create dependencies.
	d, err := dependencies.NewServiceScope(ctx, proc, cfg, logger, telemetry.NewNop())
	if err != nil {
		return err
	}

	// Start HTTP server.
	logger.Infof(
		"starting agent chat API, listen-address=%s, stop-poll-interval=%s, stop-signal-ttl=%s",
		cfg.ListenAddress, cfg.StopPollInterval, cfg.StopSignalTTL,
	)
	httpserver.Start(d, httpserver.Config{ListenAddress: cfg.ListenAddress}, api.Router(d))

	// Wait for the service shutdown.
	proc.WaitForShutdown()
	return nil
}
