// Package imagegen turns the child's sketch and conversation into a finished
// picture via Google's image-capable Gemini models.
package imagegen

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/magicsketchbook/server/domain/repositories"
)

const defaultModel = "gemini-2.0-flash-preview-image-generation"

// BasePrompt frames every generation request around the sketch.
const BasePrompt = "A high-quality, cute, 3D rendered character based on this sketch. " +
	"Pixar style, vibrant colors, soft lighting, 4k resolution."

// Gemini implements repositories.ImageGenerator.
type Gemini struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

// NewGemini creates a Gemini image generator sharing an existing client.
func NewGemini(client *genai.Client, logger *zap.Logger) *Gemini {
	return &Gemini{
		client: client,
		logger: logger,
		model:  defaultModel,
	}
}

// Generate produces one image. The sketch, when present, conditions the
// generation; the prompt carries the conversational grounding.
func (g *Gemini) Generate(ctx context.Context, req repositories.ImageRequest) (*repositories.GeneratedImage, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Sketch) > 0 {
		mime := req.SketchMIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(req.Sketch, mime))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}

	for _, candidate := range response.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				g.logger.Info("Image generated",
					zap.String("model", g.model),
					zap.Int("bytes", len(part.InlineData.Data)))
				return &repositories.GeneratedImage{
					Data:     part.InlineData.Data,
					MimeType: part.InlineData.MIMEType,
				}, nil
			}
		}
	}

	return nil, fmt.Errorf("no image generated")
}
