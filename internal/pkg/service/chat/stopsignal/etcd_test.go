package stopsignal_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	etcd "go.etcd.io/etcd/client/v3"

	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/stopsignal"
	"github.com/keenai/agent-chat/internal/pkg/utils/etcdhelper"
)

type testDeps struct {
	logger log.Logger
	clock  clockwork.Clock
	client *etcd.Client
}

func (d *testDeps) Logger() log.Logger       { return d.logger }
func (d *testDeps) Clock() clockwork.Clock   { return d.clock }
func (d *testDeps) EtcdClient() *etcd.Client { return d.client }

func newTestBus(t *testing.T, opts ...stopsignal.Option) (*stopsignal.EtcdBus, *etcd.Client) {
	t.Helper()
	client := etcdhelper.ClientForTest(t)
	d := &testDeps{logger: log.NewDebugLogger(), clock: clockwork.NewRealClock(), client: client}
	return stopsignal.NewEtcdBus(d, opts...), client
}

func TestEtcdBus_PublishAndConsume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bus, client := newTestBus(t)

	// No signal yet
	consumed, err := bus.ConsumeIfPresent(ctx, "task-1")
	require.NoError(t, err)
	assert.False(t, consumed)

	// Publish creates the key under the documented schema
	require.NoError(t, bus.Publish(ctx, "task-1"))
	resp, err := client.Get(ctx, "stop:task-1")
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)
	assert.NotZero(t, resp.Kvs[0].Lease, "signal must be attached to a lease")

	// First consume returns true and deletes the key
	consumed, err = bus.ConsumeIfPresent(ctx, "task-1")
	require.NoError(t, err)
	assert.True(t, consumed)
	resp, err = client.Get(ctx, "stop:task-1")
	require.NoError(t, err)
	assert.Empty(t, resp.Kvs)

	// Second consume returns false
	consumed, err = bus.ConsumeIfPresent(ctx, "task-1")
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestEtcdBus_PublishIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bus, _ := newTestBus(t)

	require.NoError(t, bus.Publish(ctx, "task-1"))
	require.NoError(t, bus.Publish(ctx, "task-1"))
	require.NoError(t, bus.Publish(ctx, "task-1"))

	// Repeated publishes collapse into a single consumable signal
	consumed, err := bus.ConsumeIfPresent(ctx, "task-1")
	require.NoError(t, err)
	assert.True(t, consumed)
	consumed, err = bus.ConsumeIfPresent(ctx, "task-1")
	require.NoError(t, err)
	assert.False(t, consumed)
}

// TestEtcdBus_AtMostOnceConsumption runs many concurrent consumers against
// one published signal, exactly one of them may win.
func TestEtcdBus_AtMostOnceConsumption(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bus, _ := newTestBus(t)

	const consumers = 20
	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(ctx, "contested"))

		start := make(chan struct{})
		wg := sync.WaitGroup{}
		winners := make(chan struct{}, consumers)
		for j := 0; j < consumers; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				consumed, err := bus.ConsumeIfPresent(ctx, "contested")
				assert.NoError(t, err)
				if consumed {
					winners <- struct{}{}
				}
			}()
		}
		close(start)
		wg.Wait()
		close(winners)

		count := 0
		for range winners {
			count++
		}
		assert.Equal(t, 1, count, "exactly one consumer must observe the signal")
	}
}

func TestEtcdBus_SignalExpires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Etcd rounds the lease TTL up to a whole second
	bus, client := newTestBus(t, stopsignal.WithTTL(time.Second))
	require.NoError(t, bus.Publish(ctx, "orphan"))

	assert.Eventually(t, func() bool {
		resp, err := client.Get(ctx, "stop:orphan")
		require.NoError(t, err)
		return len(resp.Kvs) == 0
	}, 10*time.Second, 100*time.Millisecond, "orphaned signal must self-expire")

	consumed, err := bus.ConsumeIfPresent(ctx, "orphan")
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestEtcdBus_IsReachable(t *testing.T) {
	t.Parallel()
	bus, _ := newTestBus(t)
	assert.True(t, bus.IsReachable(context.Background()))
}
