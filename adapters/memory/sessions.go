// Package memory provides in-process storage adapters for development and
// single-instance deployments.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/magicsketchbook/server/domain/entities"
	"github.com/magicsketchbook/server/domain/repositories"
)

// SessionStore keeps sessions in a map. Safe for concurrent use.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*entities.Session
}

// NewSessionStore creates an empty in-memory store.
func NewSessionStore() repositories.SessionStore {
	return &SessionStore{
		sessions: make(map[string]*entities.Session),
	}
}

// Get implements repositories.SessionStore. A missing session returns
// (nil, nil), matching the mongo adapter.
func (s *SessionStore) Get(ctx context.Context, id string) (*entities.Session, error) {
	if id == "" {
		return nil, errors.New("session id cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}

	// Copy so callers cannot mutate stored state without Save.
	clone := *session
	clone.Entries = append([]entities.ChatEntry(nil), session.Entries...)
	return &clone, nil
}

// Save implements repositories.SessionStore.
func (s *SessionStore) Save(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	clone := *session
	clone.Entries = append([]entities.ChatEntry(nil), session.Entries...)

	s.mu.Lock()
	s.sessions[session.ID] = &clone
	s.mu.Unlock()
	return nil
}
