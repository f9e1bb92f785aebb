// Package stopsignal implements the cross-replica stop signal bus.
//
// A stop request may be received by any replica, but the generation runs on
// exactly one of them. The bus is the only coordination point: the receiving
// replica publishes a marker to the shared store, the owning replica consumes
// it during its next poll. Consumption is a single atomic get-and-delete, so
// a signal is observed at most once, no matter how many consumers poll.
package stopsignal

import (
	"context"
	"time"

	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

const (
	// KeyPrefix of all signal keys in the shared store, the full key is "stop:{taskID}".
	KeyPrefix = "stop:"
	// DefaultTTL after which an unconsumed signal self-expires,
	// it covers stop requests for tasks that never ran.
	DefaultTTL = time.Hour
)

// ErrBusUnavailable is returned when the shared store cannot be reached.
// The run loop treats it as "no signal observed" and keeps the generation
// running, a transient outage must not kill in-flight work.
var ErrBusUnavailable = errors.New("stop signal bus is unavailable")

// Signal is the marker value stored in the bus.
// Presence of the key is sufficient, the value is used only for diagnostics.
type Signal struct {
	TaskID     string    `json:"taskId"`
	IssuedAt   time.Time `json:"issuedAt"`
	TTLSeconds int64     `json:"ttlSeconds"`
}

type Bus interface {
	// Publish idempotently records a pending-stop marker for the task.
	// A repeated publish only refreshes the TTL, it never errors on duplicates.
	Publish(ctx context.Context, taskID string) error
	// ConsumeIfPresent atomically checks for and removes the marker.
	// It returns true exactly once per publish, false otherwise.
	ConsumeIfPresent(ctx context.Context, taskID string) (bool, error)
	// IsReachable reports liveness of the underlying store, used by the health check.
	IsReachable(ctx context.Context) bool
}

func signalKey(taskID string) string {
	return KeyPrefix + taskID
}
