package entities

import (
	"encoding/json"
	"errors"
	"time"
)

// Role identifies the author of a chat entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// ChatEntry is one line of the conversation between the child and the agent.
// The wire shape matches the chat_history form field of POST /chat-to-draw.
type ChatEntry struct {
	Role Role   `json:"role" bson:"role"`
	Text string `json:"text" bson:"text"`
}

// Session holds the server-side conversation state for one frontend session.
// The ID is the opaque session identifier minted at page load; it correlates
// every request of that session.
type Session struct {
	ID           string      `json:"id" bson:"_id"`
	CreatedAt    time.Time   `json:"created_at" bson:"created_at"`
	LastActiveAt time.Time   `json:"last_active_at" bson:"last_active_at"`
	Language     string      `json:"language" bson:"language"`
	Entries      []ChatEntry `json:"entries" bson:"entries"`
}

// NewSession creates a fresh session for the given identifier.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
		Language:     "ko-KR",
		Entries:      make([]ChatEntry, 0),
	}
}

// AddEntry appends one chat entry. Entries are append-only and keep strict
// chronological order; nothing ever truncates or reorders them.
func (s *Session) AddEntry(role Role, text string) {
	s.Entries = append(s.Entries, ChatEntry{Role: role, Text: text})
	s.LastActiveAt = time.Now()
}

// History returns a copy of the conversation so callers cannot mutate the
// session's backing slice.
func (s *Session) History() []ChatEntry {
	out := make([]ChatEntry, len(s.Entries))
	copy(out, s.Entries)
	return out
}

// HistoryJSON serializes the conversation in the exact order it accumulated,
// the same encoding clients send in the chat_history form field.
func (s *Session) HistoryJSON() ([]byte, error) {
	return json.Marshal(s.Entries)
}

// ParseHistory decodes a chat_history form field.
func ParseHistory(data []byte) ([]ChatEntry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var entries []ChatEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Validate validates the session data.
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	for _, e := range s.Entries {
		if e.Role != RoleUser && e.Role != RoleAgent {
			return errors.New("invalid chat entry role")
		}
	}
	return nil
}
