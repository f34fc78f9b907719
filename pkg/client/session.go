package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// SessionData is the persisted part of a session.
type SessionData struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// SessionStore persists the session between runs.
type SessionStore interface {
	// Load returns an empty SessionData when nothing was saved.
	Load() (SessionData, error)
	Save(SessionData) error
	Clear() error
}

// Session holds the current bearer token and user. Safe for concurrent use.
type Session struct {
	mu    sync.RWMutex
	data  SessionData
	store SessionStore
}

// NewSession returns a session backed by store; a nil store keeps it in memory.
func NewSession(store SessionStore) *Session {
	return &Session{store: store}
}

// Load reads the persisted token and user, if any.
func (s *Session) Load() error {
	if s.store == nil {
		return nil
	}
	data, err := s.store.Load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Token
}

func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.User == nil {
		return nil
	}
	u := *s.data.User
	return &u
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Set stores a new token and user and persists them.
func (s *Session) Set(token string, user *User) error {
	s.mu.Lock()
	s.data = SessionData{Token: token, User: user}
	data := s.data
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	return s.store.Save(data)
}

func (s *Session) setUser(user *User) {
	s.mu.Lock()
	s.data.User = user
	s.mu.Unlock()
}

// Clear drops the token and user and removes the persisted copy.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.data = SessionData{}
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	return s.store.Clear()
}

// FileStore keeps the session as JSON in a single file with 0600 permissions.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load() (SessionData, error) {
	var data SessionData
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return data, fmt.Errorf("read session: %w", err)
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return SessionData{}, fmt.Errorf("decode session: %w", err)
	}
	return data, nil
}

func (f *FileStore) Save(data SessionData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	// Write then rename so a crash never leaves a truncated file.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
