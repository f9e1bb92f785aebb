// Package etcdhelper provides an etcd client for tests.
// Each test runs in its own namespace, the namespace is deleted during the test cleanup.
package etcdhelper

import (
	"context"
	"fmt"
	"time"

	etcd "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"

	"github.com/keenai/agent-chat/internal/pkg/env"
	"github.com/keenai/agent-chat/internal/pkg/idgenerator"
)

type testOrBenchmark interface {
	Cleanup(f func())
	Skipf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// ClientForTest creates an etcd client for a test.
// Tests are skipped if UNIT_ETCD_ENABLED=false,
// otherwise UNIT_ETCD_ENDPOINT must be set.
func ClientForTest(t testOrBenchmark) *etcd.Client {
	ctx := context.Background()
	envs := env.FromOs()

	if envs.Get("UNIT_ETCD_ENABLED") == "false" {
		t.Skipf("etcd test is disabled by UNIT_ETCD_ENABLED=false")
	}

	endpoint := envs.Get("UNIT_ETCD_ENDPOINT")
	if endpoint == "" {
		t.Fatalf("UNIT_ETCD_ENDPOINT is not set")
	}

	etcdClient, err := etcd.New(etcd.Config{
		Context:              ctx,
		Endpoints:            []string{endpoint},
		DialTimeout:          2 * time.Second,
		DialKeepAliveTimeout: 2 * time.Second,
		DialKeepAliveTime:    10 * time.Second,
		Username:             envs.Get("UNIT_ETCD_USERNAME"), // optional
		Password:             envs.Get("UNIT_ETCD_PASSWORD"), // optional
		Logger:               zap.NewNop(),
		DialOptions: []grpc.DialOption{
			grpc.WithConnectParams(grpc.ConnectParams{
				Backoff: backoff.Config{
					BaseDelay:  100 * time.Millisecond,
					Multiplier: 1.5,
					Jitter:     0.2,
					MaxDelay:   5 * time.Second,
				},
			}),
		},
	})
	if err != nil {
		t.Fatalf("cannot create etcd client: %s", err)
	}

	// Create a namespace for the test.
	originalKV := etcdClient.KV // the not-namespaced client, for the cleanup
	prefix := fmt.Sprintf("unit-%s/", idgenerator.EtcdNamespaceForTest())
	etcdClient.KV = namespace.NewKV(etcdClient.KV, prefix)
	etcdClient.Lease = namespace.NewLease(etcdClient.Lease, prefix)
	etcdClient.Watcher = namespace.NewWatcher(etcdClient.Watcher, prefix)

	// Clear the namespace after the test.
	t.Cleanup(func() {
		if _, err := originalKV.Delete(ctx, prefix, etcd.WithPrefix()); err != nil {
			t.Fatalf(`cannot clear etcd namespace "%s" after the test: %s`, prefix, err)
		}
		_ = etcdClient.Close()
	})

	return etcdClient
}
