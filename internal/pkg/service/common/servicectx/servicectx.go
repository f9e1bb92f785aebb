// Package servicectx provides a unique ID for a service process and support for graceful shutdown.
package servicectx

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/keenai/agent-chat/internal/pkg/idgenerator"
	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

type Process struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   log.Logger
	wg       sync.WaitGroup
	errCh    chan error
	uniqueID string

	lock        sync.Mutex
	terminating bool
	onShutdown  []OnShutdownFn
}

type OnShutdownFn func()

type Option func(c *config)

type config struct {
	uniqueID string
	logger   log.Logger
}

// WithUniqueID overrides the generated process unique ID.
func WithUniqueID(v string) Option {
	return func(c *config) {
		c.uniqueID = v
	}
}

func WithLogger(v log.Logger) Option {
	return func(c *config) {
		c.logger = v
	}
}

func New(ctx context.Context, cancel context.CancelFunc, opts ...Option) (*Process, error) {
	c := config{logger: log.NewNopLogger()}
	for _, o := range opts {
		o(&c)
	}

	// Unique ID consists of the hostname and PID, by default.
	if c.uniqueID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, err
		}
		c.uniqueID = fmt.Sprintf("%s-%05d", hostname, os.Getpid())
	}

	proc := &Process{
		ctx:      ctx,
		cancel:   cancel,
		logger:   c.logger,
		errCh:    make(chan error),
		uniqueID: c.uniqueID,
	}

	// SIGINT and SIGTERM stop the services gracefully.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		proc.errCh <- errors.Errorf("%s", <-sigCh)
	}()

	// Invoke shutdown callbacks, LIFO order, when the process is terminating.
	proc.Add(func(ctx context.Context, errCh chan<- error) {
		<-ctx.Done()
		proc.lock.Lock()
		proc.terminating = true
		callbacks := proc.onShutdown
		proc.lock.Unlock()
		for i := len(callbacks) - 1; i >= 0; i-- {
			callbacks[i]()
		}
	})

	proc.logger.Infof(`process unique id "%s"`, proc.uniqueID)
	return proc, nil
}

type testingT interface {
	Name() string
	Cleanup(f func())
	Fatal(args ...any)
}

func NewForTest(t testingT) *Process {
	ctx, cancel := context.WithCancel(context.Background())
	proc, err := New(ctx, cancel, WithUniqueID("test-"+t.Name()+"-"+idgenerator.Random(5)))
	if err != nil {
		t.Fatal(err)
		return nil
	}

	t.Cleanup(func() {
		proc.Shutdown(errors.New("test cleanup"))
		proc.WaitForShutdown()
	})
	return proc
}

// Ctx returns the context of the Process, it is cancelled on shutdown.
func (v *Process) Ctx() context.Context {
	return v.ctx
}

// UniqueID identifies the process within the fleet.
func (v *Process) UniqueID() string {
	return v.uniqueID
}

// Shutdown triggers termination of the Process.
func (v *Process) Shutdown(err error) {
	go func() {
		v.errCh <- err
	}()
}

func (v *Process) WaitForShutdown() {
	v.logger.Infof("exiting (%v)", <-v.errCh)
	v.cancel()
	v.wg.Wait()
	v.logger.Info("exited")
}

// Add starts a service operation in a goroutine.
// Graceful termination waits until all operations have finished.
// The ctx parameter signals the service termination,
// the errCh parameter can be used to stop the whole process with an error.
func (v *Process) Add(operation func(ctx context.Context, errCh chan<- error)) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		operation(v.ctx, v.errCh)
	}()
}

// OnShutdown registers a callback invoked when the process is terminating.
// Callbacks are invoked sequentially, in LIFO order.
func (v *Process) OnShutdown(fn OnShutdownFn) {
	v.lock.Lock()
	defer v.lock.Unlock()
	if v.terminating {
		v.logger.Errorf("cannot register OnShutdown callback: the process is terminating")
		return
	}
	v.onShutdown = append(v.onShutdown, fn)
}
