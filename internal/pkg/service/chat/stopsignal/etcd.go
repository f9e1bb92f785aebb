package stopsignal

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	etcd "go.etcd.io/etcd/client/v3"

	"github.com/keenai/agent-chat/internal/pkg/encoding/json"
	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

const reachabilityTimeout = 2 * time.Second

// EtcdBus stores signals in etcd, the TTL is implemented by a lease.
type EtcdBus struct {
	logger log.Logger
	client *etcd.Client
	clock  clockwork.Clock
	ttl    time.Duration
}

type Option func(b *EtcdBus)

// WithTTL overrides the default signal expiration.
func WithTTL(v time.Duration) Option {
	return func(b *EtcdBus) {
		b.ttl = v
	}
}

type dependencies interface {
	Logger() log.Logger
	Clock() clockwork.Clock
	EtcdClient() *etcd.Client
}

func NewEtcdBus(d dependencies, opts ...Option) *EtcdBus {
	b := &EtcdBus{
		logger: d.Logger().AddPrefix("[stop-signal]"),
		client: d.EtcdClient(),
		clock:  d.Clock(),
		ttl:    DefaultTTL,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *EtcdBus) Publish(ctx context.Context, taskID string) error {
	ttlSeconds := int64(b.ttl.Seconds())

	// Each publish gets a fresh lease, so a repeated publish refreshes the TTL.
	lease, err := b.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return errors.Errorf("%w: cannot create lease: %s", ErrBusUnavailable, err)
	}

	signal := Signal{TaskID: taskID, IssuedAt: b.clock.Now().UTC(), TTLSeconds: ttlSeconds}
	key := signalKey(taskID)
	if _, err := b.client.Put(ctx, key, json.MustEncodeString(signal, false), etcd.WithLease(lease.ID)); err != nil {
		return errors.Errorf(`%w: cannot publish signal "%s": %s`, ErrBusUnavailable, key, err)
	}

	b.logger.Infof(`published stop signal "%s"`, key)
	return nil
}

func (b *EtcdBus) ConsumeIfPresent(ctx context.Context, taskID string) (bool, error) {
	key := signalKey(taskID)

	// Get and delete in one transaction.
	// A separate check-then-delete would open a race window in which
	// two concurrent pollers both observe the signal, or a poller deletes
	// a signal published between its check and its delete.
	resp, err := b.client.Txn(ctx).
		If(etcd.Compare(etcd.Version(key), "!=", 0)).
		Then(etcd.OpGet(key), etcd.OpDelete(key)).
		Commit()
	if err != nil {
		return false, errors.Errorf(`%w: cannot consume signal "%s": %s`, ErrBusUnavailable, key, err)
	}
	if !resp.Succeeded {
		return false, nil
	}

	// Log the propagation delay, the value is diagnostics only.
	if kvs := resp.Responses[0].GetResponseRange().Kvs; len(kvs) == 1 {
		var signal Signal
		if err := json.Decode(kvs[0].Value, &signal); err == nil {
			b.logger.Infof(`consumed stop signal "%s", issued %s ago`, key, b.clock.Now().UTC().Sub(signal.IssuedAt))
			return true, nil
		}
	}
	b.logger.Infof(`consumed stop signal "%s"`, key)
	return true, nil
}

func (b *EtcdBus) IsReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, reachabilityTimeout)
	defer cancel()
	if _, err := b.client.Get(ctx, "liveness-probe", etcd.WithCountOnly()); err != nil {
		b.logger.Warnf("liveness probe failed: %s", err)
		return false
	}
	return true
}
