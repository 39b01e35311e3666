package agent

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/magicsketchbook/server/domain/entities"
	"github.com/magicsketchbook/server/domain/repositories"
)

const sendTimeout = 60 * time.Second

// geminiChatSession implements repositories.ChatSession. It keeps the
// conversation in Gemini content form and mirrors it as chat entries.
type geminiChatSession struct {
	client  *genai.Client
	cfg     Config
	logger  *zap.Logger
	history []*genai.Content
}

func newGeminiChatSession(client *genai.Client, cfg Config, logger *zap.Logger, history []entities.ChatEntry) *geminiChatSession {
	return &geminiChatSession{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		history: historyToContents(history),
	}
}

// Send delivers one user turn, optionally with the child's drawing attached,
// and returns the agent's reply. Model failures degrade to a fallback reply
// rather than an error: the conversation must keep flowing.
func (s *geminiChatSession) Send(ctx context.Context, turn repositories.AgentTurn) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(turn.Text)}
	if len(turn.Image) > 0 {
		mime := turn.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(turn.Image, mime))
	}
	userContent := genai.NewContentFromParts(parts, genai.RoleUser)

	contents := make([]*genai.Content, 0, len(s.history)+2)
	contents = append(contents, genai.NewContentFromText(s.cfg.SystemPrompt, genai.RoleUser))
	contents = append(contents, s.history...)
	contents = append(contents, userContent)

	config := &genai.GenerateContentConfig{
		SafetySettings:  s.cfg.SafetySettings,
		Temperature:     genai.Ptr(s.cfg.Temperature),
		TopP:            genai.Ptr(s.cfg.TopP),
		TopK:            genai.Ptr(s.cfg.TopK),
		MaxOutputTokens: int32(s.cfg.MaxOutputTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		response, err = s.client.Models.GenerateContent(ctx, s.cfg.Model, contents, config)
		if err == nil {
			break
		}
		s.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if attempt < 2 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}
	if err != nil {
		s.logger.Error("Chat turn failed after retries", zap.Error(err))
		return s.fallback(userContent), nil
	}

	text := extractText(response)
	if text == "" {
		s.logger.Warn("Empty chat response")
		return s.fallback(userContent), nil
	}

	s.history = append(s.history, userContent, genai.NewContentFromText(text, genai.RoleModel))
	return text, nil
}

// History returns the accumulated conversation as chat entries.
func (s *geminiChatSession) History() []entities.ChatEntry {
	return contentsToHistory(s.history)
}

func (s *geminiChatSession) fallback(userContent *genai.Content) string {
	reply := s.cfg.Fallbacks[int(time.Now().UnixNano())%len(s.cfg.Fallbacks)]
	s.history = append(s.history, userContent, genai.NewContentFromText(reply, genai.RoleModel))
	return reply
}

func extractText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	return text
}

func historyToContents(entries []entities.ChatEntry) []*genai.Content {
	var contents []*genai.Content
	for _, e := range entries {
		role := genai.RoleUser
		if e.Role == entities.RoleAgent {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(e.Text, genai.Role(role)))
	}
	return contents
}

func contentsToHistory(contents []*genai.Content) []entities.ChatEntry {
	var entries []entities.ChatEntry
	for _, content := range contents {
		role := entities.RoleUser
		if content.Role == genai.RoleModel {
			role = entities.RoleAgent
		}
		var text string
		for _, part := range content.Parts {
			if part.Text != "" {
				text += part.Text
			}
		}
		if text != "" {
			entries = append(entries, entities.ChatEntry{Role: role, Text: text})
		}
	}
	return entries
}
