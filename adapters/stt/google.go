// Package stt provides speech capture backends for the turn controller.
package stt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/magicsketchbook/server/domain/repositories"
)

// GoogleRecognizer implements repositories.Recognizer over Google Cloud
// Speech-to-Text streaming recognition with interim results enabled, so the
// turn controller sees the transcript stabilize in real time.
type GoogleRecognizer struct {
	logger *zap.Logger
}

// NewGoogleRecognizer creates a Google Cloud recognizer.
func NewGoogleRecognizer(logger *zap.Logger) *GoogleRecognizer {
	return &GoogleRecognizer{logger: logger}
}

// Start implements repositories.Recognizer.
func (g *GoogleRecognizer) Start(ctx context.Context, cfg repositories.SpeechConfig, onUpdate func(repositories.RecognitionUpdate), onEnd func(error)) (repositories.Capture, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := audioEncoding(cfg.Encoding)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, err
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(cfg.SampleRate),
					LanguageCode:    cfg.Language,
				},
				InterimResults: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	c := &googleCapture{
		client: client,
		stream: stream,
		logger: g.logger,
	}
	go c.receive(onUpdate, onEnd)

	return c, nil
}

type googleCapture struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient

	logger *zap.Logger

	mu      sync.Mutex
	stopped bool
}

// Write feeds raw audio into the stream.
func (c *googleCapture) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil
	}

	if err := c.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// Stop signals end of audio. The receive loop drains remaining results and
// then fires onEnd. Idempotent.
func (c *googleCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil
	}
	c.stopped = true

	if err := c.stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send stream: %w", err)
	}
	return nil
}

// receive pumps recognition responses into the update callback. Each update
// carries the concatenation of every finalized segment so far plus the
// current interim hypothesis, matching the replace-not-append transcript
// contract.
func (c *googleCapture) receive(onUpdate func(repositories.RecognitionUpdate), onEnd func(error)) {
	defer c.client.Close()

	var finals []string

	for {
		resp, err := c.stream.Recv()
		if err == io.EOF {
			onEnd(nil)
			return
		}
		if err != nil {
			onEnd(fmt.Errorf("failed to receive response: %w", err))
			return
		}

		interim := ""
		updated := false
		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			transcript := result.Alternatives[0].Transcript
			if result.IsFinal {
				finals = append(finals, transcript)
			} else {
				interim += transcript
			}
			updated = true
		}
		if !updated {
			continue
		}

		full := strings.Join(finals, " ")
		if interim != "" {
			if full != "" {
				full += " "
			}
			full += interim
		}
		onUpdate(repositories.RecognitionUpdate{
			Transcript: full,
			Final:      interim == "",
		})
	}
}

func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio encoding: %s", encoding)
	}
}
