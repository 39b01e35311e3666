package repositories

import (
	"context"

	"github.com/magicsketchbook/server/domain/entities"
)

// Agent abstracts the conversational model behind the sketchbook.
type Agent interface {
	// StartChat creates a chat session primed with prior history.
	StartChat(ctx context.Context, history []entities.ChatEntry) (ChatSession, error)
}

// ChatSession is an ongoing conversation with the agent.
type ChatSession interface {
	// Send delivers one user turn, optionally with the child's current
	// drawing or photo attached, and returns the agent's reply text.
	Send(ctx context.Context, turn AgentTurn) (string, error)
	// History returns the accumulated conversation.
	History() []entities.ChatEntry
}

// AgentTurn is one user utterance plus optional visual context.
type AgentTurn struct {
	Text      string
	Image     []byte // PNG/JPEG bytes, nil when no visual context accompanies the turn
	ImageMIME string
}
