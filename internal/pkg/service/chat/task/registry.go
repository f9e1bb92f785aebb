package task

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

// ErrTaskAlreadyRunning is returned on an attempt to register a task ID
// that is already running on this replica.
var ErrTaskAlreadyRunning = errors.New("task is already running")

// Handle is the process-local cancellation handle of one running task.
// It lives from the task start to the task termination.
type Handle struct {
	taskID   string
	state    *atomic.String
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newHandle(taskID string) *Handle {
	return &Handle{
		taskID: taskID,
		state:  atomic.NewString(string(StateRunning)),
		stopCh: make(chan struct{}),
	}
}

func (h *Handle) TaskID() string {
	return h.taskID
}

func (h *Handle) State() State {
	return State(h.state.Load())
}

func (h *Handle) setState(s State) {
	h.state.Store(string(s))
}

// RequestStop signals the local run loop directly, bypassing the poll latency.
// It is safe to call repeatedly and after the task has finished.
func (h *Handle) RequestStop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
}

// StopRequested is closed when a local stop was requested.
func (h *Handle) StopRequested() <-chan struct{} {
	return h.stopCh
}

// Registry maps task IDs to cancellation handles of tasks running
// in this process. It is never consulted across replicas, its only purpose
// is to let a stop request handled by the owning replica skip the
// poll-interval latency.
type Registry struct {
	logger log.Logger

	lock  sync.Mutex
	tasks map[string]*Handle
	count *atomic.Int64
}

func NewRegistry(logger log.Logger) *Registry {
	return &Registry{
		logger: logger.AddPrefix("[task-registry]"),
		tasks:  make(map[string]*Handle),
		count:  atomic.NewInt64(0),
	}
}

// Register creates a handle for the task.
// At most one handle per task ID may exist at any time.
func (r *Registry) Register(taskID string) (*Handle, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, found := r.tasks[taskID]; found {
		return nil, errors.Errorf(`%w: "%s"`, ErrTaskAlreadyRunning, taskID)
	}
	handle := newHandle(taskID)
	r.tasks[taskID] = handle
	r.count.Inc()
	r.logger.Debugf(`registered task "%s"`, taskID)
	return handle, nil
}

func (r *Registry) Lookup(taskID string) (*Handle, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	handle, found := r.tasks[taskID]
	return handle, found
}

// Unregister removes the task, it is a no-op if the task is not registered.
func (r *Registry) Unregister(taskID string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, found := r.tasks[taskID]; found {
		delete(r.tasks, taskID)
		r.count.Dec()
		r.logger.Debugf(`unregistered task "%s"`, taskID)
	}
}

// Len returns the number of tasks running in this process.
func (r *Registry) Len() int64 {
	return r.count.Load()
}
