package agent

import (
	"context"
	"fmt"

	"github.com/magicsketchbook/server/domain/entities"
	"github.com/magicsketchbook/server/domain/repositories"
)

// Mock is a placeholder agent for development and tests.
type Mock struct{}

// NewMock creates a mock agent.
func NewMock() repositories.Agent {
	return &Mock{}
}

// StartChat implements repositories.Agent.
func (m *Mock) StartChat(ctx context.Context, history []entities.ChatEntry) (repositories.ChatSession, error) {
	return &mockChatSession{history: append([]entities.ChatEntry(nil), history...)}, nil
}

type mockChatSession struct {
	history []entities.ChatEntry
}

func (s *mockChatSession) Send(ctx context.Context, turn repositories.AgentTurn) (string, error) {
	s.history = append(s.history, entities.ChatEntry{Role: entities.RoleUser, Text: turn.Text})

	var reply string
	switch {
	case len(turn.Image) > 0:
		reply = "우와, 멋진 그림이다! 여기에 무엇을 더 그려 볼까?"
	case turn.Text != "":
		reply = fmt.Sprintf("'%s'라니 재미있다! 더 이야기해 줘.", turn.Text)
	default:
		reply = "안녕! 오늘은 무엇을 그려 볼까?"
	}

	s.history = append(s.history, entities.ChatEntry{Role: entities.RoleAgent, Text: reply})
	return reply, nil
}

func (s *mockChatSession) History() []entities.ChatEntry {
	out := make([]entities.ChatEntry, len(s.history))
	copy(out, s.history)
	return out
}
