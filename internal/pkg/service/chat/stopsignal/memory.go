package stopsignal

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryBus is an in-process Bus implementation with the same contract
// as EtcdBus. It backs unit tests and local development without etcd,
// cross-replica coordination obviously does not work with it.
type MemoryBus struct {
	clock clockwork.Clock
	ttl   time.Duration

	lock    sync.Mutex
	signals map[string]memorySignal
}

type memorySignal struct {
	signal    Signal
	expiresAt time.Time
}

func NewMemoryBus(clock clockwork.Clock, opts ...MemoryOption) *MemoryBus {
	b := &MemoryBus{clock: clock, ttl: DefaultTTL, signals: make(map[string]memorySignal)}
	for _, o := range opts {
		o(b)
	}
	return b
}

type MemoryOption func(b *MemoryBus)

func WithMemoryTTL(v time.Duration) MemoryOption {
	return func(b *MemoryBus) {
		b.ttl = v
	}
}

func (b *MemoryBus) Publish(_ context.Context, taskID string) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	ttlSeconds := int64(b.ttl.Seconds())
	now := b.clock.Now().UTC()
	b.signals[signalKey(taskID)] = memorySignal{
		signal:    Signal{TaskID: taskID, IssuedAt: now, TTLSeconds: ttlSeconds},
		expiresAt: now.Add(b.ttl),
	}
	return nil
}

func (b *MemoryBus) ConsumeIfPresent(_ context.Context, taskID string) (bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	key := signalKey(taskID)
	item, found := b.signals[key]
	if !found {
		return false, nil
	}
	delete(b.signals, key)
	if b.clock.Now().UTC().After(item.expiresAt) {
		// Expired signals are dropped lazily.
		return false, nil
	}
	return true, nil
}

func (b *MemoryBus) IsReachable(context.Context) bool {
	return true
}

// Exists reports presence of an unconsumed signal, for tests.
func (b *MemoryBus) Exists(taskID string) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	_, found := b.signals[signalKey(taskID)]
	return found
}
