package stopsignal_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keenai/agent-chat/internal/pkg/service/chat/stopsignal"
)

func TestMemoryBus_PublishAndConsume(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bus := stopsignal.NewMemoryBus(clockwork.NewFakeClock())

	consumed, err := bus.ConsumeIfPresent(ctx, "task-1")
	require.NoError(t, err)
	assert.False(t, consumed)

	require.NoError(t, bus.Publish(ctx, "task-1"))
	assert.True(t, bus.Exists("task-1"))

	consumed, err = bus.ConsumeIfPresent(ctx, "task-1")
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.False(t, bus.Exists("task-1"))

	consumed, err = bus.ConsumeIfPresent(ctx, "task-1")
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestMemoryBus_SignalExpires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	bus := stopsignal.NewMemoryBus(clock, stopsignal.WithMemoryTTL(time.Minute))

	require.NoError(t, bus.Publish(ctx, "orphan"))
	clock.Advance(2 * time.Minute)

	consumed, err := bus.ConsumeIfPresent(ctx, "orphan")
	require.NoError(t, err)
	assert.False(t, consumed, "expired signal must not be consumable")
}
