package stream_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keenai/agent-chat/internal/pkg/service/chat/stream"
)

func TestSSEEmitter_Headers(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	_, err := stream.NewSSEEmitter(rec)
	require.NoError(t, err)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
}

func TestSSEEmitter_EventStream(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	e, err := stream.NewSSEEmitter(rec)
	require.NoError(t, err)

	require.NoError(t, e.EmitStarted("chat-1", "run-1"))
	require.NoError(t, e.Emit("Hello"))
	require.NoError(t, e.Emit(" world"))
	require.NoError(t, e.EmitTerminal(stream.ReasonDone, nil))

	body := rec.Body.String()
	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	require.Len(t, frames, 4)

	assert.True(t, strings.HasPrefix(frames[0], "event: run.started\ndata: "))
	assert.Contains(t, frames[0], `"threadId":"chat-1"`)
	assert.Contains(t, frames[0], `"runId":"run-1"`)

	assert.True(t, strings.HasPrefix(frames[1], "event: message.delta\ndata: "))
	assert.Contains(t, frames[1], `"delta":"Hello"`)
	assert.True(t, strings.HasPrefix(frames[2], "event: message.delta\ndata: "))
	assert.Contains(t, frames[2], `"delta":" world"`)

	assert.True(t, strings.HasPrefix(frames[3], "event: run.finished\ndata: "))
	assert.Contains(t, frames[3], `"reason":"done"`)

	assert.True(t, rec.Flushed, "every event must be flushed immediately")
}

func TestSSEEmitter_DeltasShareMessageID(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	e, err := stream.NewSSEEmitter(rec)
	require.NoError(t, err)

	require.NoError(t, e.EmitStarted("chat-1", "run-1"))
	require.NoError(t, e.Emit("a"))
	require.NoError(t, e.Emit("b"))

	lines := strings.Split(rec.Body.String(), "\n")
	var ids []string
	for _, line := range lines {
		if data, found := strings.CutPrefix(line, "data: "); found && strings.Contains(data, "message.delta") {
			start := strings.Index(data, `"messageId":"`)
			require.GreaterOrEqual(t, start, 0)
			rest := data[start+len(`"messageId":"`):]
			ids = append(ids, rest[:strings.Index(rest, `"`)])
		}
	}
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1], "all deltas of one run belong to one message")
}

func TestSSEEmitter_ErrorEvent(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	e, err := stream.NewSSEEmitter(rec)
	require.NoError(t, err)

	require.NoError(t, e.EmitStarted("chat-1", "run-1"))
	require.NoError(t, e.EmitTerminal(stream.ReasonError, assert.AnError))

	body := rec.Body.String()
	assert.Contains(t, body, "event: run.error\n")
	assert.Contains(t, body, assert.AnError.Error())
}

func TestSSEEmitter_TerminalIsFinal(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	e, err := stream.NewSSEEmitter(rec)
	require.NoError(t, err)

	require.NoError(t, e.EmitStarted("chat-1", "run-1"))
	require.NoError(t, e.EmitTerminal(stream.ReasonStopped, nil))

	// The second terminal call is a no-op, later writes are rejected.
	require.NoError(t, e.EmitTerminal(stream.ReasonDone, nil))
	require.ErrorIs(t, e.Emit("late token"), stream.ErrStreamClosed)

	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "event: run.finished"), "exactly one terminal event per run")
	assert.NotContains(t, body, "late token")
	assert.NotContains(t, body, `"reason":"done"`)
}

func TestSSEEmitter_RequiresFlusher(t *testing.T) {
	t.Parallel()
	// A ResponseWriter without Flush support cannot stream.
	_, err := stream.NewSSEEmitter(noFlushWriter{})
	require.Error(t, err)
}

// noFlushWriter is a ResponseWriter that does not implement http.Flusher.
type noFlushWriter struct{}

func (noFlushWriter) Header() http.Header         { return http.Header{} }
func (noFlushWriter) Write(p []byte) (int, error) { return len(p), nil }
func (noFlushWriter) WriteHeader(int)             {}
