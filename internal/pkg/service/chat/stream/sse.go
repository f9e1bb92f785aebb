package stream

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/keenai/agent-chat/internal/pkg/encoding/json"
	"github.com/keenai/agent-chat/internal/pkg/idgenerator"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

// ErrStreamClosed is returned by writes after a terminal event.
var ErrStreamClosed = errors.New("stream is closed")

// SSEEmitter writes events as Server-Sent Events.
// Writes after the terminal event are rejected with ErrStreamClosed.
// A write error means the client has disconnected, the caller treats
// it as an implicit stop.
type SSEEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher

	lock      sync.Mutex
	threadID  string
	runID     string
	messageID string
	closed    bool
}

func NewSSEEmitter(w http.ResponseWriter) (*SSEEmitter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &SSEEmitter{w: w, flusher: flusher}, nil
}

func (e *SSEEmitter) EmitStarted(threadID, runID string) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.threadID = threadID
	e.runID = runID
	return e.write(Event{Type: EventRunStarted, ThreadID: threadID, RunID: runID})
}

func (e *SSEEmitter) Emit(token string) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.messageID == "" {
		e.messageID = idgenerator.MessageID()
	}
	return e.write(Event{Type: EventMessageDelta, MessageID: e.messageID, Delta: token})
}

func (e *SSEEmitter) EmitTerminal(reason Reason, err error) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.closed {
		return nil
	}

	var event Event
	if reason == ReasonError {
		message := "generation failed"
		if err != nil {
			message = err.Error()
		}
		event = Event{Type: EventRunError, ThreadID: e.threadID, RunID: e.runID, Message: message}
	} else {
		event = Event{Type: EventRunFinished, ThreadID: e.threadID, RunID: e.runID, Reason: reason}
	}

	writeErr := e.write(event)
	e.closed = true
	return writeErr
}

func (e *SSEEmitter) write(event Event) error {
	if e.closed {
		return ErrStreamClosed
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event.Type, json.MustEncodeString(event, false)); err != nil {
		return err
	}
	// Flush immediately, tokens must not sit in a buffer.
	e.flusher.Flush()
	return nil
}
