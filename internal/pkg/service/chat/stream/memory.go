package stream

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryEmitter records emitted events, used in tests.
type MemoryEmitter struct {
	clock clockwork.Clock

	lock   sync.Mutex
	events []RecordedEvent
	closed bool
}

type RecordedEvent struct {
	Event Event
	At    time.Time
}

func NewMemoryEmitter(clock clockwork.Clock) *MemoryEmitter {
	return &MemoryEmitter{clock: clock}
}

func (e *MemoryEmitter) EmitStarted(threadID, runID string) error {
	return e.record(Event{Type: EventRunStarted, ThreadID: threadID, RunID: runID})
}

func (e *MemoryEmitter) Emit(token string) error {
	return e.record(Event{Type: EventMessageDelta, Delta: token})
}

func (e *MemoryEmitter) EmitTerminal(reason Reason, err error) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.closed {
		return nil
	}
	event := Event{Type: EventRunFinished, Reason: reason}
	if reason == ReasonError {
		event = Event{Type: EventRunError}
		if err != nil {
			event.Message = err.Error()
		}
	}
	e.events = append(e.events, RecordedEvent{Event: event, At: e.clock.Now()})
	e.closed = true
	return nil
}

// Events returns a copy of all recorded events.
func (e *MemoryEmitter) Events() []RecordedEvent {
	e.lock.Lock()
	defer e.lock.Unlock()
	out := make([]RecordedEvent, len(e.events))
	copy(out, e.events)
	return out
}

// Tokens returns all emitted content tokens.
func (e *MemoryEmitter) Tokens() []string {
	e.lock.Lock()
	defer e.lock.Unlock()
	var out []string
	for _, item := range e.events {
		if item.Event.Type == EventMessageDelta {
			out = append(out, item.Event.Delta)
		}
	}
	return out
}

// Content returns the concatenation of all emitted tokens.
func (e *MemoryEmitter) Content() string {
	return strings.Join(e.Tokens(), "")
}

// Terminal returns the terminal event, if any.
func (e *MemoryEmitter) Terminal() (RecordedEvent, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	for _, item := range e.events {
		if item.Event.Type == EventRunFinished || item.Event.Type == EventRunError {
			return item, true
		}
	}
	return RecordedEvent{}, false
}

func (e *MemoryEmitter) record(event Event) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.closed {
		return ErrStreamClosed
	}
	e.events = append(e.events, RecordedEvent{Event: event, At: e.clock.Now()})
	return nil
}
