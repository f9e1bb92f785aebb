// Package etcdclient provides the factory for the etcd client used by all services.
// The client is created once per process, shared by all components and closed on shutdown.
package etcdclient

import (
	"context"
	"strings"
	"time"

	etcd "go.etcd.io/etcd/client/v3"
	etcdNamespace "go.etcd.io/etcd/client/v3/namespace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"

	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/service/common/servicectx"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultKeepAliveTimeout  = 5 * time.Second
	defaultKeepAliveInterval = 10 * time.Second
)

type config struct {
	connectTimeout    time.Duration
	keepAliveTimeout  time.Duration
	keepAliveInterval time.Duration
	logger            log.Logger
}

type Option func(c *config)

// WithConnectTimeout defines the maximum time for creating the connection in the New function.
func WithConnectTimeout(v time.Duration) Option {
	return func(c *config) {
		c.connectTimeout = v
	}
}

func WithKeepAliveTimeout(v time.Duration) Option {
	return func(c *config) {
		c.keepAliveTimeout = v
	}
}

func WithKeepAliveInterval(v time.Duration) Option {
	return func(c *config) {
		c.keepAliveInterval = v
	}
}

func WithLogger(v log.Logger) Option {
	return func(c *config) {
		c.logger = v
	}
}

// UseNamespace prefixes all operations of the client by the namespace.
func UseNamespace(c *etcd.Client, prefix string) {
	c.KV = etcdNamespace.NewKV(c.KV, prefix)
	c.Watcher = etcdNamespace.NewWatcher(c.Watcher, prefix)
	c.Lease = etcdNamespace.NewLease(c.Lease, prefix)
}

// New creates a new etcd client.
// The connection is closed on the process shutdown.
func New(ctx context.Context, proc *servicectx.Process, credentials Credentials, opts ...Option) (*etcd.Client, error) {
	cfg := config{
		connectTimeout:    defaultConnectTimeout,
		keepAliveTimeout:  defaultKeepAliveTimeout,
		keepAliveInterval: defaultKeepAliveInterval,
		logger:            log.NewNopLogger(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	credentials.Normalize()
	if err := credentials.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.logger.AddPrefix("[etcd-client]")

	// Forward etcd client messages to the service logger, debug messages are dropped.
	etcdLogger := zap.New(levelFilterCore{minLevel: log.InfoLevel, target: logger})

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.connectTimeout)
	defer connectCancel()

	startTime := time.Now()
	logger.Infof(
		"connecting to etcd, connectTimeout=%s, keepAliveTimeout=%s, keepAliveInterval=%s",
		cfg.connectTimeout, cfg.keepAliveTimeout, cfg.keepAliveInterval,
	)
	c, err := etcd.New(etcd.Config{
		Context:              context.Background(), // a long-lived context, the client exists as long as the entire process
		Endpoints:            []string{credentials.Endpoint},
		DialTimeout:          cfg.connectTimeout,
		DialKeepAliveTimeout: cfg.keepAliveTimeout,
		DialKeepAliveTime:    cfg.keepAliveInterval,
		Username:             credentials.Username, // optional
		Password:             credentials.Password, // optional
		Logger:               etcdLogger,
		PermitWithoutStream:  true, // always send keep-alive pings
		DialOptions: []grpc.DialOption{
			grpc.WithConnectParams(grpc.ConnectParams{
				Backoff: backoff.Config{
					BaseDelay:  100 * time.Millisecond,
					Multiplier: 1.5,
					Jitter:     0.2,
					MaxDelay:   15 * time.Second,
				},
			}),
		},
	})
	if err != nil {
		return nil, errors.Errorf("cannot create etcd client: cannot connect: %w", err)
	}

	UseNamespace(c, credentials.Namespace)

	// Connection check: get cluster members.
	if _, err := c.MemberList(connectCtx); err != nil {
		_ = c.Close()
		return nil, errors.Errorf("cannot create etcd client: cannot get cluster members: %w", err)
	}

	proc.OnShutdown(func() {
		logger.Info("closing etcd connection")
		if err := c.Close(); err != nil {
			logger.Warnf("cannot close etcd connection: %s", err)
		} else {
			logger.Info("closed etcd connection")
		}
	})

	logger.Infof(`connected to etcd cluster "%s" | %s`, strings.Join(c.Endpoints(), ";"), time.Since(startTime))
	return c, nil
}

// levelFilterCore forwards entries at or above minLevel to the target logger.
type levelFilterCore struct {
	minLevel zapcore.Level
	target   log.Logger
}

func (c levelFilterCore) Enabled(level zapcore.Level) bool {
	return level >= c.minLevel
}

func (c levelFilterCore) With([]zapcore.Field) zapcore.Core {
	return c
}

func (c levelFilterCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c levelFilterCore) Write(entry zapcore.Entry, _ []zapcore.Field) error {
	switch entry.Level {
	case zapcore.InfoLevel:
		c.target.Info(entry.Message)
	case zapcore.WarnLevel:
		c.target.Warn(entry.Message)
	default:
		c.target.Error(entry.Message)
	}
	return nil
}

func (c levelFilterCore) Sync() error {
	return nil
}
