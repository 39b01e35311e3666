package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/magicsketchbook/server/domain/entities"
	"github.com/magicsketchbook/server/domain/repositories"
)

// SessionStore implements repositories.SessionStore on a sessions collection
// keyed by the opaque session identifier.
type SessionStore struct {
	collection *mongo.Collection
}

// NewSessionStore creates a MongoDB session store.
func NewSessionStore(db *mongo.Database) repositories.SessionStore {
	return &SessionStore{
		collection: db.Collection("sessions"),
	}
}

// Get implements repositories.SessionStore. A missing session returns
// (nil, nil).
func (r *SessionStore) Get(ctx context.Context, id string) (*entities.Session, error) {
	if id == "" {
		return nil, errors.New("session id cannot be empty")
	}

	var session entities.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &session, nil
}

// Save implements repositories.SessionStore with an upsert.
func (r *SessionStore) Save(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": session.ID}, session, opts); err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	return nil
}
