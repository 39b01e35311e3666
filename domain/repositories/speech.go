package repositories

import "context"

// SpeechConfig describes the audio a capture session will receive.
type SpeechConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// RecognitionUpdate is one recognition callback. Transcript carries the
// concatenation of every stabilized segment of the session so far, so
// consumers replace rather than append.
type RecognitionUpdate struct {
	Transcript string
	Final      bool
}

// Recognizer abstracts continuous speech capture. Implementations invoke
// onUpdate for each interim or final result and onEnd exactly once when the
// engine finishes, whether by explicit Stop, internal pause detection, or
// error. Absence of a recognizer is a configuration value: callers degrade
// to text-only interaction.
type Recognizer interface {
	Start(ctx context.Context, cfg SpeechConfig, onUpdate func(RecognitionUpdate), onEnd func(error)) (Capture, error)
}

// Capture is one live capture session.
type Capture interface {
	// Write feeds raw audio into the engine.
	Write(data []byte) error
	// Stop ends the session. Idempotent.
	Stop() error
}
