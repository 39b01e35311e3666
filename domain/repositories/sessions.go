package repositories

import (
	"context"

	"github.com/magicsketchbook/server/domain/entities"
)

// SessionStore defines data access for conversation sessions.
type SessionStore interface {
	// Get returns the session with the given ID, or nil when none exists.
	Get(ctx context.Context, id string) (*entities.Session, error)
	// Save creates or replaces a session.
	Save(ctx context.Context, session *entities.Session) error
}
