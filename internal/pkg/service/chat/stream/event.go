// Package stream emits generation output to the client as an incremental
// event stream. Every event is flushed immediately, the stream is terminated
// by exactly one terminal event.
package stream

// Reason closes the stream, exactly one terminal event is emitted per run.
type Reason string

const (
	// ReasonDone - the producer was exhausted, the generation completed naturally.
	ReasonDone Reason = "done"
	// ReasonStopped - the generation was cancelled by a stop signal or a client disconnect.
	ReasonStopped Reason = "stopped"
	// ReasonError - the producer failed, the stream carries the error message.
	ReasonError Reason = "error"
)

type EventType string

const (
	EventRunStarted   EventType = "run.started"
	EventMessageDelta EventType = "message.delta"
	EventRunFinished  EventType = "run.finished"
	EventRunError     EventType = "run.error"
)

// Event is the wire payload of one stream event.
type Event struct {
	Type      EventType `json:"type"`
	ThreadID  string    `json:"threadId,omitempty"`
	RunID     string    `json:"runId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	Delta     string    `json:"delta,omitempty"`
	Reason    Reason    `json:"reason,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Emitter writes the event stream of one generation run.
type Emitter interface {
	// EmitStarted opens the stream.
	EmitStarted(threadID, runID string) error
	// Emit writes one content token, it must be flushed promptly.
	Emit(token string) error
	// EmitTerminal closes the stream, it is a no-op after the first terminal event.
	// The err parameter is used only with ReasonError.
	EmitTerminal(reason Reason, err error) error
}
