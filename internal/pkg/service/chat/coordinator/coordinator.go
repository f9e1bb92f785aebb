// Package coordinator handles stop requests, received by any replica.
package coordinator

import (
	"context"

	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/stopsignal"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/task"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

// Result of one stop request.
// Stopping a task that is not running anywhere is not an error,
// the signal is published anyway and expires via TTL if never consumed.
type Result struct {
	TaskID   string `json:"taskId"`
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
	// Err is set when the signal could not be published.
	Err error `json:"-"`
}

// Coordinator publishes stop signals and triggers the local fast path.
type Coordinator struct {
	logger   log.Logger
	bus      stopsignal.Bus
	registry *task.Registry
}

type dependencies interface {
	Logger() log.Logger
	StopSignalBus() stopsignal.Bus
	TaskRegistry() *task.Registry
}

func New(d dependencies) *Coordinator {
	return &Coordinator{
		logger:   d.Logger().AddPrefix("[stop-coordinator]"),
		bus:      d.StopSignalBus(),
		registry: d.TaskRegistry(),
	}
}

// RequestStop publishes a stop signal for the task.
// The publish is idempotent, the caller may retry freely.
func (c *Coordinator) RequestStop(ctx context.Context, taskID string) Result {
	if taskID == "" {
		err := errors.New("task id must not be empty")
		return Result{TaskID: taskID, Accepted: false, Message: err.Error(), Err: err}
	}

	// The publish is always required: the task may run on a different
	// replica, or on no replica at all.
	if err := c.bus.Publish(ctx, taskID); err != nil {
		c.logger.Errorf(`cannot publish stop signal for task "%s": %s`, taskID, err)
		return Result{TaskID: taskID, Accepted: false, Message: "cannot publish stop signal", Err: err}
	}

	// Fast path: if the task runs in this process, signal its handle
	// directly and skip the poll-interval latency.
	if handle, found := c.registry.Lookup(taskID); found {
		handle.RequestStop()
		c.logger.Infof(`task "%s" runs locally, stop requested directly`, taskID)
	}

	return Result{TaskID: taskID, Accepted: true, Message: "stop signal sent"}
}

// RequestStopBulk applies RequestStop to each task independently,
// a failure of one ID never blocks processing of the others.
func (c *Coordinator) RequestStopBulk(ctx context.Context, taskIDs []string) []Result {
	results := make([]Result, 0, len(taskIDs))
	errs := errors.NewMultiError()
	for _, taskID := range taskIDs {
		result := c.RequestStop(ctx, taskID)
		results = append(results, result)
		if result.Err != nil {
			errs.AppendWithPrefixf(result.Err, `task "%s"`, taskID)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		c.logger.Warnf("bulk stop finished with errors: %s", err)
	}
	return results
}
