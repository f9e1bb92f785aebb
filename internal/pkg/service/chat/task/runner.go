package task

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/keenai/agent-chat/internal/pkg/idgenerator"
	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/producer"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/stopsignal"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/stream"
	"github.com/keenai/agent-chat/internal/pkg/telemetry"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

// DefaultPollInterval is the default cadence of the stop signal checks.
// It bounds the worst-case cancellation latency to
// "interval + one production step" and trades responsiveness
// against load on the shared bus.
const DefaultPollInterval = 100 * time.Millisecond

// Runner drives token-producing generations.
// One Run call occupies one goroutine for the task, plus one for the producer.
// The loop suspends only at two points: waiting for the next token and the
// fixed-interval signal poll, both are cancellable.
type Runner struct {
	logger       log.Logger
	tracer       trace.Tracer
	clock        clockwork.Clock
	bus          stopsignal.Bus
	registry     *Registry
	pollInterval time.Duration
}

type dependencies interface {
	Logger() log.Logger
	Telemetry() telemetry.Telemetry
	Clock() clockwork.Clock
	StopSignalBus() stopsignal.Bus
	TaskRegistry() *Registry
}

type Option func(r *Runner)

// WithPollInterval overrides the stop signal poll cadence.
func WithPollInterval(v time.Duration) Option {
	return func(r *Runner) {
		r.pollInterval = v
	}
}

func NewRunner(d dependencies, opts ...Option) *Runner {
	r := &Runner{
		logger:       d.Logger().AddPrefix("[task]"),
		tracer:       d.Telemetry().Tracer(),
		clock:        d.Clock(),
		bus:          d.StopSignalBus(),
		registry:     d.TaskRegistry(),
		pollInterval: DefaultPollInterval,
	}
	for _, o := range opts {
		o(r)
	}
	if r.pollInterval <= 0 {
		panic(errors.Errorf(`poll interval must be positive, found %s`, r.pollInterval))
	}
	return r
}

// Run executes one generation until a terminal state is reached and returns it.
// The registry entry is removed on every exit path, so a stop request for
// a finished task never finds a dangling handle.
//
// Cancellation of ctx is treated as a client disconnect, symmetrically
// with an explicit stop signal.
func (r *Runner) Run(ctx context.Context, taskID string, prod producer.Producer, req producer.Request, emitter stream.Emitter) (finalState State, err error) {
	handle, err := r.registry.Register(taskID)
	if err != nil {
		return "", err
	}
	// Safety net, the regular paths below unregister before the terminal event.
	defer r.registry.Unregister(taskID)

	ctx, span := r.tracer.Start(ctx, "chat.task.run", trace.WithAttributes(
		attribute.String("taskId", taskID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("state", finalState.String()))
		span.End()
	}()

	logger := r.logger.AddPrefix(fmt.Sprintf("[%s]", taskID))
	startTime := r.clock.Now()

	// Cancelling produceCtx aborts the generation mid-flight.
	produceCtx, cancelProduce := context.WithCancel(ctx)
	defer cancelProduce()

	fail := func(taskErr error) (State, error) {
		handle.setState(StateFailed)
		r.registry.Unregister(taskID)
		_ = emitter.EmitTerminal(stream.ReasonError, taskErr)
		logger.Warnf(`task failed (%s): %s`, r.clock.Now().Sub(startTime), taskErr)
		return StateFailed, taskErr
	}
	stop := func(cause stopCause) (State, error) {
		handle.setState(StateStopping)
		logger.Infof(`stopping task (%s)`, cause)
		cancelProduce()
		r.registry.Unregister(taskID)
		_ = emitter.EmitTerminal(stream.ReasonStopped, nil)
		handle.setState(StateStopped)
		logger.Infof(`task stopped (%s)`, r.clock.Now().Sub(startTime))
		return StateStopped, nil
	}

	runID := idgenerator.RunID()
	logger.Infof(`started task, runId "%s"`, runID)
	if err := emitter.EmitStarted(taskID, runID); err != nil {
		// The client is gone before the first event.
		return stop(causeDisconnect)
	}

	tokenStream, err := prod.Open(produceCtx, req)
	if err != nil {
		return fail(errors.PrefixError(err, "cannot open producer"))
	}

	// The producer runs in its own goroutine, so the loop below can keep
	// polling the signal bus even while the producer works on the next token.
	// The tokens channel is unbuffered, a slow client backpressures
	// the producer naturally.
	tokens := make(chan string)
	produceErr := make(chan error, 1)
	go func() {
		defer close(tokens)
		defer func() {
			if panicErr := recover(); panicErr != nil {
				produceErr <- errors.Errorf("producer panic: %s, stacktrace: %s", panicErr, string(debug.Stack()))
			}
		}()
		defer tokenStream.Close()
		for {
			token, err := tokenStream.Next(produceCtx)
			if err != nil {
				if !errors.Is(err, io.EOF) && produceCtx.Err() == nil {
					produceErr <- err
				}
				return
			}
			select {
			case tokens <- token:
			case <-produceCtx.Done():
				return
			}
		}
	}()

	ticker := r.clock.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case token, ok := <-tokens:
			if !ok {
				// The producer finished, either exhausted or failed.
				select {
				case taskErr := <-produceErr:
					return fail(taskErr)
				default:
					handle.setState(StateCompleted)
					r.registry.Unregister(taskID)
					_ = emitter.EmitTerminal(stream.ReasonDone, nil)
					logger.Infof(`task completed (%s)`, r.clock.Now().Sub(startTime))
					return StateCompleted, nil
				}
			}
			if emitErr := emitter.Emit(token); emitErr != nil {
				// The write failed, the client has disconnected. There is
				// no consumer anymore, running to completion would be waste.
				return stop(causeDisconnect)
			}

		case <-ticker.Chan():
			consumed, busErr := r.bus.ConsumeIfPresent(ctx, taskID)
			if busErr != nil {
				// Fail-open: a transient bus outage must not kill in-flight
				// work it was not asked to kill. The error is only reported.
				logger.Warnf(`cannot check stop signal: %s`, busErr)
				continue
			}
			if consumed {
				return stop(causeSignal)
			}

		case <-handle.StopRequested():
			// Same-replica fast path, see coordinator.
			return stop(causeLocal)

		case <-ctx.Done():
			return stop(causeDisconnect)
		}
	}
}
