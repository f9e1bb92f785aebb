// Package config defines the configuration of the chat service.
// Values are read from flags, each flag has an ENV fallback with the "CHAT_"
// prefix, e.g. --stop-poll-interval / CHAT_STOP_POLL_INTERVAL.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/keenai/agent-chat/internal/pkg/env"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/producer"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/stopsignal"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/task"
	"github.com/keenai/agent-chat/internal/pkg/service/common/etcdclient"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

const envPrefix = "CHAT_"

type Config struct {
	Debug            bool                   `configKey:"debug" configUsage:"Enable debug log level."`
	ListenAddress    string                 `configKey:"listenAddress" configUsage:"Listen address of the HTTP API." validate:"required,hostname_port"`
	SessionDir       string                 `configKey:"sessionDir" configUsage:"Directory for chat session files." validate:"required"`
	StopPollInterval time.Duration          `configKey:"stopPollInterval" configUsage:"Cadence of stop signal checks during generation." validate:"required"`
	StopSignalTTL    time.Duration          `configKey:"stopSignalTtl" configUsage:"Expiration of unconsumed stop signals." validate:"required"`
	Etcd             etcdclient.Credentials `configKey:"etcd"`
	Gateway          producer.GatewayConfig `configKey:"gateway"`
}

func New() Config {
	return Config{
		Debug:            false,
		ListenAddress:    "0.0.0.0:8000",
		SessionDir:       "./data/sessions",
		StopPollInterval: task.DefaultPollInterval,
		StopSignalTTL:    stopsignal.DefaultTTL,
		Etcd: etcdclient.Credentials{
			Endpoint:  "http://localhost:2379",
			Namespace: "agent-chat",
		},
		Gateway: producer.NewGatewayConfig(),
	}
}

// LoadFrom parses the configuration from command line arguments and ENVs.
func LoadFrom(args []string, envs env.Provider) (Config, error) {
	cfg := New()

	fs := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	fs.SortFlags = true
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug log level.")
	fs.StringVar(&cfg.ListenAddress, "listen-address", cfg.ListenAddress, "Listen address of the HTTP API.")
	fs.StringVar(&cfg.SessionDir, "session-dir", cfg.SessionDir, "Directory for chat session files.")
	fs.DurationVar(&cfg.StopPollInterval, "stop-poll-interval", cfg.StopPollInterval, "Cadence of stop signal checks during generation.")
	fs.DurationVar(&cfg.StopSignalTTL, "stop-signal-ttl", cfg.StopSignalTTL, "Expiration of unconsumed stop signals.")
	fs.StringVar(&cfg.Etcd.Endpoint, "etcd-endpoint", cfg.Etcd.Endpoint, "etcd endpoint.")
	fs.StringVar(&cfg.Etcd.Namespace, "etcd-namespace", cfg.Etcd.Namespace, "etcd namespace prefix.")
	fs.StringVar(&cfg.Etcd.Username, "etcd-username", cfg.Etcd.Username, "etcd username.")
	fs.StringVar(&cfg.Etcd.Password, "etcd-password", cfg.Etcd.Password, "etcd password.")
	fs.StringVar(&cfg.Gateway.URL, "gateway-url", cfg.Gateway.URL, "Model gateway URL.")
	fs.StringVar(&cfg.Gateway.Token, "gateway-token", cfg.Gateway.Token, "Model gateway API token.")
	fs.StringVar(&cfg.Gateway.Model, "gateway-model", cfg.Gateway.Model, "Model ID used for generation.")
	fs.Float64Var(&cfg.Gateway.Temperature, "gateway-temperature", cfg.Gateway.Temperature, "Sampling temperature.")

	if err := fs.Parse(args[1:]); err != nil {
		return cfg, err
	}

	// ENV fallback for flags not set on the command line.
	var envErr error
	fs.VisitAll(func(flag *pflag.Flag) {
		if flag.Changed || envErr != nil {
			return
		}
		envName := envPrefix + strings.ReplaceAll(strings.ToUpper(flag.Name), "-", "_")
		if value, found := envs.Lookup(envName); found {
			if err := fs.Set(flag.Name, value); err != nil {
				envErr = errors.PrefixErrorf(err, `invalid value of "%s"`, envName)
			}
		}
	})
	if envErr != nil {
		return cfg, envErr
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	c.Etcd.Normalize()
}

func (c *Config) Validate() error {
	errs := errors.NewMultiError()
	if c.ListenAddress == "" {
		errs.Append(errors.New("listen address is not set"))
	}
	if c.SessionDir == "" {
		errs.Append(errors.New("session directory is not set"))
	}
	if c.StopPollInterval <= 0 {
		errs.Append(errors.Errorf(`stop poll interval must be positive, found %s`, c.StopPollInterval))
	}
	if c.StopSignalTTL < time.Second {
		errs.Append(errors.Errorf(`stop signal TTL must be at least one second, found %s`, c.StopSignalTTL))
	}
	errs.AppendWithPrefix(c.Etcd.Validate(), "etcd")
	errs.AppendWithPrefix(c.Gateway.Validate(), "gateway")
	return errs.ErrorOrNil()
}
