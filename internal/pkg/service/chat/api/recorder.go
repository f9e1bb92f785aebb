package api

import (
	"strings"
	"sync"

	"github.com/keenai/agent-chat/internal/pkg/service/chat/stream"
)

// recordingEmitter passes events through and collects the emitted tokens,
// so the assistant turn can be written to the session store after the run.
type recordingEmitter struct {
	stream.Emitter
	lock    sync.Mutex
	content strings.Builder
}

func newRecordingEmitter(target stream.Emitter) *recordingEmitter {
	return &recordingEmitter{Emitter: target}
}

func (e *recordingEmitter) Emit(token string) error {
	if err := e.Emitter.Emit(token); err != nil {
		return err
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	e.content.WriteString(token)
	return nil
}

func (e *recordingEmitter) Content() string {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.content.String()
}
