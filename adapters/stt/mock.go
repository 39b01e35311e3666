package stt

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/magicsketchbook/server/domain/repositories"
)

// MockRecognizer fabricates recognition updates from the amount of audio
// received, for development without Google credentials.
type MockRecognizer struct {
	logger *zap.Logger
}

// NewMockRecognizer creates a mock recognizer.
func NewMockRecognizer(logger *zap.Logger) *MockRecognizer {
	return &MockRecognizer{logger: logger}
}

// Start implements repositories.Recognizer.
func (m *MockRecognizer) Start(ctx context.Context, cfg repositories.SpeechConfig, onUpdate func(repositories.RecognitionUpdate), onEnd func(error)) (repositories.Capture, error) {
	m.logger.Info("Starting mock speech capture",
		zap.Int("sampleRate", cfg.SampleRate),
		zap.String("encoding", cfg.Encoding),
		zap.String("language", cfg.Language))

	return &mockCapture{
		onUpdate: onUpdate,
		onEnd:    onEnd,
	}, nil
}

type mockCapture struct {
	mu       sync.Mutex
	total    int
	stopped  bool
	onUpdate func(repositories.RecognitionUpdate)
	onEnd    func(error)
}

func (c *mockCapture) Write(data []byte) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.total += len(data)
	total := c.total
	update := c.onUpdate
	c.mu.Unlock()

	var transcript string
	switch {
	case total > 60000:
		transcript = "공룡이 풍선을 들고 있는 그림 그려 줘"
	case total > 20000:
		transcript = "공룡이 풍선을"
	case total > 0:
		transcript = "공룡"
	default:
		return nil
	}

	update(repositories.RecognitionUpdate{Transcript: transcript, Final: total > 60000})
	return nil
}

func (c *mockCapture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	end := c.onEnd
	c.mu.Unlock()

	end(nil)
	return nil
}
