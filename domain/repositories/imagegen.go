package repositories

import "context"

// ImageRequest asks for a generated picture grounded in the conversation and,
// when available, the child's sketch or photo.
type ImageRequest struct {
	Prompt     string
	Sketch     []byte // optional conditioning image
	SketchMIME string
}

// GeneratedImage is the produced picture.
type GeneratedImage struct {
	Data     []byte
	MimeType string
}

// ImageGenerator abstracts the image-generation model.
type ImageGenerator interface {
	Generate(ctx context.Context, req ImageRequest) (*GeneratedImage, error)
}
