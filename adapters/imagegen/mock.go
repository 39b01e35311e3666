package imagegen

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"

	"github.com/magicsketchbook/server/domain/repositories"
)

// Mock returns a small solid-color PNG for development and tests.
type Mock struct{}

// NewMock creates a mock image generator.
func NewMock() repositories.ImageGenerator {
	return &Mock{}
}

// Generate implements repositories.ImageGenerator.
func (m *Mock) Generate(ctx context.Context, req repositories.ImageRequest) (*repositories.GeneratedImage, error) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	fill := color.RGBA{R: 120, G: 180, B: 255, A: 255}
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &repositories.GeneratedImage{
		Data:     buf.Bytes(),
		MimeType: "image/png",
	}, nil
}
