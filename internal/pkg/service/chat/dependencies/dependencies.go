// Package dependencies provides the dependency container of the chat service.
// Shared clients are created once per process and passed in explicitly,
// there are no global singletons.
package dependencies

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	etcd "go.etcd.io/etcd/client/v3"

	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/config"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/coordinator"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/producer"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/session"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/stopsignal"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/task"
	"github.com/keenai/agent-chat/internal/pkg/service/common/etcdclient"
	"github.com/keenai/agent-chat/internal/pkg/service/common/servicectx"
	"github.com/keenai/agent-chat/internal/pkg/telemetry"
)

// ServiceScope exposes the shared components of the chat service.
type ServiceScope interface {
	Config() config.Config
	Logger() log.Logger
	Clock() clockwork.Clock
	Telemetry() telemetry.Telemetry
	Process() *servicectx.Process
	EtcdClient() *etcd.Client
	StopSignalBus() stopsignal.Bus
	TaskRegistry() *task.Registry
	TaskRunner() *task.Runner
	StopCoordinator() *coordinator.Coordinator
	SessionStore() *session.Store
	TokenProducer() producer.Producer
}

type serviceScope struct {
	config      config.Config
	logger      log.Logger
	clock       clockwork.Clock
	telemetry   telemetry.Telemetry
	proc        *servicectx.Process
	etcdClient  *etcd.Client
	bus         stopsignal.Bus
	registry    *task.Registry
	runner      *task.Runner
	coordinator *coordinator.Coordinator
	sessions    *session.Store
	producer    producer.Producer
}

func NewServiceScope(ctx context.Context, proc *servicectx.Process, cfg config.Config, logger log.Logger, tel telemetry.Telemetry) (ServiceScope, error) {
	d := &serviceScope{
		config:    cfg,
		logger:    logger,
		clock:     clockwork.NewRealClock(),
		telemetry: tel,
		proc:      proc,
	}

	etcdClient, err := etcdclient.New(ctx, proc, cfg.Etcd, etcdclient.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	d.etcdClient = etcdClient

	d.bus = stopsignal.NewEtcdBus(d, stopsignal.WithTTL(cfg.StopSignalTTL))
	d.registry = task.NewRegistry(logger)
	d.runner = task.NewRunner(d, task.WithPollInterval(cfg.StopPollInterval))
	d.coordinator = coordinator.New(d)
	d.producer = producer.NewGateway(logger, cfg.Gateway)

	sessions, err := session.NewStore(afero.NewOsFs(), cfg.SessionDir, d.clock, logger)
	if err != nil {
		return nil, err
	}
	d.sessions = sessions

	return d, nil
}

func (d *serviceScope) Config() config.Config                     { return d.config }
func (d *serviceScope) Logger() log.Logger                        { return d.logger }
func (d *serviceScope) Clock() clockwork.Clock                    { return d.clock }
func (d *serviceScope) Telemetry() telemetry.Telemetry            { return d.telemetry }
func (d *serviceScope) Process() *servicectx.Process              { return d.proc }
func (d *serviceScope) EtcdClient() *etcd.Client                  { return d.etcdClient }
func (d *serviceScope) StopSignalBus() stopsignal.Bus             { return d.bus }
func (d *serviceScope) TaskRegistry() *task.Registry              { return d.registry }
func (d *serviceScope) TaskRunner() *task.Runner                  { return d.runner }
func (d *serviceScope) StopCoordinator() *coordinator.Coordinator { return d.coordinator }
func (d *serviceScope) SessionStore() *session.Store              { return d.sessions }
func (d *serviceScope) TokenProducer() producer.Producer          { return d.producer }
