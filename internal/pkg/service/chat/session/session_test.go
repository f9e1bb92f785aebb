package session_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/service/chat/session"
)

func newTestStore(t *testing.T) (*session.Store, afero.Fs, *clockwork.FakeClock) {
	t.Helper()
	fs := afero.NewMemMapFs()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	store, err := session.NewStore(fs, "/data/sessions", clock, log.NewDebugLogger())
	require.NoError(t, err)
	return store, fs, clock
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()
	store, _, _ := newTestStore(t)

	_, found, err := store.Get("chat-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_AppendAndGet(t *testing.T) {
	t.Parallel()
	store, _, clock := newTestStore(t)

	require.NoError(t, store.AppendMessages("chat-1", session.Message{Role: session.RoleUser, Content: "hello"}))
	clock.Advance(time.Minute)
	require.NoError(t, store.AppendMessages("chat-1", session.Message{Role: session.RoleAssistant, Content: "hi there"}))

	s, found, err := store.Get("chat-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "chat-1", s.ChatID)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, session.RoleUser, s.Messages[0].Role)
	assert.Equal(t, "hello", s.Messages[0].Content)
	assert.Equal(t, session.RoleAssistant, s.Messages[1].Role)
	assert.Equal(t, "hi there", s.Messages[1].Content)
	assert.Equal(t, clock.Now().UTC(), s.UpdatedAt)
	assert.True(t, s.Messages[1].CreatedAt.After(s.Messages[0].CreatedAt))
}

func TestStore_List(t *testing.T) {
	t.Parallel()
	store, fs, _ := newTestStore(t)

	require.NoError(t, store.AppendMessages("chat-b", session.Message{Role: session.RoleUser, Content: "b"}))
	require.NoError(t, store.AppendMessages("chat-a",
		session.Message{Role: session.RoleUser, Content: "a1"},
		session.Message{Role: session.RoleAssistant, Content: "a2"},
	))

	// Corrupted and foreign files are skipped.
	require.NoError(t, afero.WriteFile(fs, "/data/sessions/broken.json", []byte("{not json"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/sessions/notes.txt", []byte("ignore me"), 0o644))

	infos, err := store.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "chat-a", infos[0].ChatID)
	assert.Equal(t, 2, infos[0].MessageCount)
	assert.Equal(t, session.StatusActive, infos[0].Status)
	assert.Equal(t, "chat-b", infos[1].ChatID)
	assert.Equal(t, 1, infos[1].MessageCount)
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()
	store, _, _ := newTestStore(t)

	require.NoError(t, store.AppendMessages("chat-1", session.Message{Role: session.RoleUser, Content: "hello"}))

	deleted, err := store.Delete("chat-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err := store.Get("chat-1")
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err = store.Delete("chat-1")
	require.NoError(t, err)
	assert.False(t, deleted, "a repeated delete reports that nothing was found")
}

func TestStore_CorruptedFileError(t *testing.T) {
	t.Parallel()
	store, fs, _ := newTestStore(t)

	require.NoError(t, afero.WriteFile(fs, "/data/sessions/chat-1.json", []byte("{not json"), 0o644))

	_, _, err := store.Get("chat-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot decode session "chat-1"`)
}
