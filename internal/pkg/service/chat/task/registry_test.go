package task_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/task"
)

func TestRegistry_Lifecycle(t *testing.T) {
	t.Parallel()
	registry := task.NewRegistry(log.NewNopLogger())

	_, found := registry.Lookup("task-1")
	assert.False(t, found)

	handle, err := registry.Register("task-1")
	require.NoError(t, err)
	assert.Equal(t, "task-1", handle.TaskID())
	assert.Equal(t, task.StateRunning, handle.State())
	assert.Equal(t, int64(1), registry.Len())

	lookedUp, found := registry.Lookup("task-1")
	assert.True(t, found)
	assert.Same(t, handle, lookedUp)

	registry.Unregister("task-1")
	_, found = registry.Lookup("task-1")
	assert.False(t, found)
	assert.Equal(t, int64(0), registry.Len())

	// Unregister of a missing task is a no-op
	registry.Unregister("task-1")
	assert.Equal(t, int64(0), registry.Len())
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	t.Parallel()
	registry := task.NewRegistry(log.NewNopLogger())

	_, err := registry.Register("task-1")
	require.NoError(t, err)

	_, err = registry.Register("task-1")
	require.ErrorIs(t, err, task.ErrTaskAlreadyRunning)

	// The ID is free again after unregistration
	registry.Unregister("task-1")
	_, err = registry.Register("task-1")
	require.NoError(t, err)
}

func TestRegistry_ConcurrentRegistration(t *testing.T) {
	t.Parallel()
	registry := task.NewRegistry(log.NewNopLogger())

	const attempts = 50
	start := make(chan struct{})
	wg := sync.WaitGroup{}
	winners := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := registry.Register("contested"); err == nil {
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
	assert.Equal(t, 1, count, "exactly one registration must win")
	assert.Equal(t, int64(1), registry.Len())
}

func TestHandle_RequestStopIsIdempotent(t *testing.T) {
	t.Parallel()
	registry := task.NewRegistry(log.NewNopLogger())
	handle, err := registry.Register("task-1")
	require.NoError(t, err)

	select {
	case <-handle.StopRequested():
		t.Fatal("stop must not be requested yet")
	default:
	}

	handle.RequestStop()
	handle.RequestStop() // repeated call must not panic

	select {
	case <-handle.StopRequested():
	default:
		t.Fatal("stop must be requested")
	}
}
