// Package usecase orchestrates the conversation flow between the transport
// layers and the model adapters.
package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/magicsketchbook/server/domain/entities"
	"github.com/magicsketchbook/server/domain/repositories"
)

// TurnInput is one user turn arriving over HTTP or websocket.
type TurnInput struct {
	SessionID     string
	Text          string
	GenerateImage bool
	Image         []byte
	ImageMIME     string
	// History, when present, replaces the stored history as grounding for
	// image generation: the client sends its full transcript with every
	// generation request.
	History []entities.ChatEntry
}

// TurnOutput is the reply delivered back to the client.
type TurnOutput struct {
	AgentMessage   string
	GeneratedImage string // data URL, empty when no image was produced
}

// Conversation drives one turn end to end: session bookkeeping, the agent
// reply, and optional image generation.
type Conversation struct {
	agent    repositories.Agent
	images   repositories.ImageGenerator
	sessions repositories.SessionStore
	logger   *zap.Logger
}

// NewConversation creates the conversation service.
func NewConversation(
	agent repositories.Agent,
	images repositories.ImageGenerator,
	sessions repositories.SessionStore,
	logger *zap.Logger,
) *Conversation {
	return &Conversation{
		agent:    agent,
		images:   images,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleTurn processes one turn for the given session.
func (s *Conversation) HandleTurn(ctx context.Context, in TurnInput) (TurnOutput, error) {
	if in.SessionID == "" {
		return TurnOutput{}, fmt.Errorf("session id is required")
	}

	session, err := s.sessions.Get(ctx, in.SessionID)
	if err != nil {
		return TurnOutput{}, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		session = entities.NewSession(in.SessionID)
	}

	grounding := session.History()
	if len(in.History) > 0 {
		grounding = in.History
	}

	chat, err := s.agent.StartChat(ctx, grounding)
	if err != nil {
		return TurnOutput{}, fmt.Errorf("start chat: %w", err)
	}

	reply, err := chat.Send(ctx, repositories.AgentTurn{
		Text:      in.Text,
		Image:     in.Image,
		ImageMIME: in.ImageMIME,
	})
	if err != nil {
		return TurnOutput{}, fmt.Errorf("agent turn: %w", err)
	}

	out := TurnOutput{AgentMessage: reply}

	if in.GenerateImage {
		generated, err := s.images.Generate(ctx, repositories.ImageRequest{
			Prompt:     generationPrompt(grounding, in.Text),
			Sketch:     in.Image,
			SketchMIME: in.ImageMIME,
		})
		if err != nil {
			return TurnOutput{}, fmt.Errorf("generate image: %w", err)
		}
		out.GeneratedImage = fmt.Sprintf("data:%s;base64,%s",
			generated.MimeType,
			base64.StdEncoding.EncodeToString(generated.Data))
	}

	session.AddEntry(entities.RoleUser, in.Text)
	session.AddEntry(entities.RoleAgent, reply)
	if err := s.sessions.Save(ctx, session); err != nil {
		// Persistence trouble must not lose the reply already produced.
		s.logger.Error("Failed to save session",
			zap.String("sessionID", in.SessionID),
			zap.Error(err))
	}

	s.logger.Info("Turn processed",
		zap.String("sessionID", in.SessionID),
		zap.Bool("generateImage", in.GenerateImage),
		zap.Int("historyLen", len(grounding)))

	return out, nil
}

// generationPrompt grounds image generation in the whole conversation, not
// just the triggering instruction.
func generationPrompt(history []entities.ChatEntry, instruction string) string {
	var b strings.Builder
	b.WriteString(instruction)
	if len(history) > 0 {
		b.WriteString("\n\nConversation so far:\n")
		for _, e := range history {
			b.WriteString(string(e.Role))
			b.WriteString(": ")
			b.WriteString(e.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}
