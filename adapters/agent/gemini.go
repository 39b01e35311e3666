// Package agent provides the conversational model behind the sketchbook.
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/magicsketchbook/server/domain/entities"
	"github.com/magicsketchbook/server/domain/repositories"
)

// Gemini implements repositories.Agent using Google's Gemini API.
type Gemini struct {
	client *genai.Client
	logger *zap.Logger
	cfg    Config
}

// NewGemini creates a Gemini-backed agent.
func NewGemini(ctx context.Context, apiKey string, logger *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		logger: logger,
		cfg:    DefaultConfig(),
	}, nil
}

// Client exposes the underlying genai client so the image generator can share
// one connection.
func (g *Gemini) Client() *genai.Client {
	return g.client
}

// StartChat creates a chat session primed with prior history.
func (g *Gemini) StartChat(ctx context.Context, history []entities.ChatEntry) (repositories.ChatSession, error) {
	return newGeminiChatSession(g.client, g.cfg, g.logger, history), nil
}
