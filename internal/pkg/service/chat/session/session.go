// Package session persists chat transcripts as JSON files.
// The store is an opaque collaborator of the generation run loop,
// replicas share it only through the mounted volume.
package session

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/keenai/agent-chat/internal/pkg/encoding/json"
	"github.com/keenai/agent-chat/internal/pkg/log"
	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	StatusNew    = "new"
	StatusActive = "active"
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Session struct {
	ChatID    string    `json:"chatId"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Info is a session summary for listings.
type Info struct {
	ChatID       string    `json:"chatId"`
	Status       string    `json:"status"`
	MessageCount int       `json:"messageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store reads and writes session files under one directory.
type Store struct {
	logger log.Logger
	clock  clockwork.Clock
	fs     afero.Fs
	dir    string

	// Guards read-modify-write cycles within this process.
	lock sync.Mutex
}

func NewStore(fs afero.Fs, dir string, clock clockwork.Clock, logger log.Logger) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.PrefixErrorf(err, `cannot create session directory "%s"`, dir)
	}
	return &Store{logger: logger.AddPrefix("[session]"), clock: clock, fs: fs, dir: dir}, nil
}

// Get returns the session, found=false means the chat has no history yet.
func (s *Store) Get(chatID string) (Session, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.read(chatID)
}

// AppendMessages adds messages to the session, creating it if needed.
func (s *Store) AppendMessages(chatID string, messages ...Message) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	session, found, err := s.read(chatID)
	if err != nil {
		return err
	}
	if !found {
		session = Session{ChatID: chatID}
	}

	now := s.clock.Now().UTC()
	for _, message := range messages {
		if message.CreatedAt.IsZero() {
			message.CreatedAt = now
		}
		session.Messages = append(session.Messages, message)
	}
	session.UpdatedAt = now

	data := json.MustEncode(session, true)
	if err := afero.WriteFile(s.fs, s.path(chatID), data, 0o644); err != nil {
		return errors.PrefixErrorf(err, `cannot write session "%s"`, chatID)
	}
	return nil
}

// List returns summaries of all sessions, corrupted files are skipped.
func (s *Store) List() ([]Info, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	files, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, errors.PrefixErrorf(err, `cannot list session directory "%s"`, s.dir)
	}

	out := make([]Info, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		chatID := strings.TrimSuffix(file.Name(), ".json")
		session, found, err := s.read(chatID)
		if err != nil {
			s.logger.Warnf(`skipped corrupted session file "%s": %s`, file.Name(), err)
			continue
		}
		if !found {
			continue
		}
		out = append(out, Info{
			ChatID:       session.ChatID,
			Status:       StatusActive,
			MessageCount: len(session.Messages),
			UpdatedAt:    session.UpdatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ChatID < out[j].ChatID
	})
	return out, nil
}

// Delete removes the session, found=false means there was nothing to delete.
func (s *Store) Delete(chatID string) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	path := s.path(chatID)
	if exists, err := afero.Exists(s.fs, path); err != nil {
		return false, errors.PrefixErrorf(err, `cannot delete session "%s"`, chatID)
	} else if !exists {
		return false, nil
	}
	if err := s.fs.Remove(path); err != nil {
		return false, errors.PrefixErrorf(err, `cannot delete session "%s"`, chatID)
	}
	s.logger.Infof(`deleted session "%s"`, chatID)
	return true, nil
}

func (s *Store) read(chatID string) (Session, bool, error) {
	path := s.path(chatID)
	exists, err := afero.Exists(s.fs, path)
	if err != nil {
		return Session{}, false, errors.PrefixErrorf(err, `cannot read session "%s"`, chatID)
	}
	if !exists {
		return Session{}, false, nil
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return Session{}, false, errors.PrefixErrorf(err, `cannot read session "%s"`, chatID)
	}
	var session Session
	if err := json.Decode(data, &session); err != nil {
		return Session{}, false, errors.PrefixErrorf(err, `cannot decode session "%s"`, chatID)
	}
	if session.ChatID == "" {
		session.ChatID = chatID
	}
	return session, true, nil
}

func (s *Store) path(chatID string) string {
	return filepath.Join(s.dir, chatID+".json")
}
