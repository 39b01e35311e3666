// Package turn implements the conversational turn controller: it owns the
// speech-capture lifecycle, accumulates a live transcript, detects
// end-of-utterance via a silence timeout, and sequences requests against the
// chat/image-generation backend.
package turn

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/magicsketchbook/server/domain/entities"
	"github.com/magicsketchbook/server/domain/repositories"
)

// State is the controller's lifecycle state.
type State string

const (
	StateIdle          State = "idle"
	StateListening     State = "listening"
	StateAwaitingReply State = "awaiting_reply"
	StateGenerating    State = "generating"
)

var (
	// ErrBusy is returned while another backend request is in flight. The
	// controller serializes SendTurn and TriggerGeneration with a single
	// in-flight guard rather than queueing.
	ErrBusy = errors.New("turn: request already in flight")

	// ErrSpeechUnavailable is returned when no recognizer was configured.
	// Voice features degrade; text turns still work.
	ErrSpeechUnavailable = errors.New("turn: speech capture not available")

	// ErrNotIdle is returned when listening is requested mid-turn.
	ErrNotIdle = errors.New("turn: controller is not idle")
)

const (
	// DefaultSilenceTimeout is the window after the last recognition update
	// before the utterance is considered finished.
	DefaultSilenceTimeout = 2500 * time.Millisecond

	// DefaultMinImageBytes filters degenerate captures: visual context below
	// this size is never attached to a request.
	DefaultMinImageBytes = 1000
)

// Fixed agent-side strings. The fallback substitutes for a failed chat turn;
// the instruction is the summarizing prompt sent with generation requests.
const (
	DefaultFallbackReply       = "앗, 잘 못 들었어. 다시 한 번 말해 줄래?"
	DefaultGenerateInstruction = "지금까지 우리가 나눈 이야기를 바탕으로 멋진 그림을 그려 줘!"
)

// ChatRequest is one request to the backend collaborator.
type ChatRequest struct {
	Text          string
	SessionID     string
	GenerateImage bool
	Image         []byte // nil when no visual context accompanies the turn
	History       []entities.ChatEntry
}

// ChatResponse is the backend's reply.
type ChatResponse struct {
	AgentMessage   string
	GeneratedImage string // data URL, empty when none was produced
}

// Backend is the remote chat/image endpoint plus its error-log collaborator.
// relay.Client satisfies it over HTTP; server-side callers satisfy it
// in-process.
type Backend interface {
	ChatToDraw(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// ReportError is fire-and-forget; failures to log are ignored.
	ReportError(ctx context.Context, message, stack, info string)
}

// EventType tags controller notifications.
type EventType string

const (
	EventState       EventType = "state"
	EventTranscript  EventType = "transcript"
	EventUserTurn    EventType = "user_turn"
	EventAgentReply  EventType = "agent_reply"
	EventResultImage EventType = "result_image"
	EventNotice      EventType = "notice"
)

// Event is a controller notification delivered on the event callback.
type Event struct {
	Type EventType
	Text string
}

// Config tunes a controller. Zero values take defaults.
type Config struct {
	SessionID           string
	Language            string
	SilenceTimeout      time.Duration
	MinImageBytes       int
	FallbackReply       string
	GenerateInstruction string
	SampleRate          int
	Encoding            string
}

func (c *Config) applyDefaults() {
	if c.Language == "" {
		c.Language = "ko-KR"
	}
	if c.SilenceTimeout == 0 {
		c.SilenceTimeout = DefaultSilenceTimeout
	}
	if c.MinImageBytes == 0 {
		c.MinImageBytes = DefaultMinImageBytes
	}
	if c.FallbackReply == "" {
		c.FallbackReply = DefaultFallbackReply
	}
	if c.GenerateInstruction == "" {
		c.GenerateInstruction = DefaultGenerateInstruction
	}
	if c.SampleRate == 0 {
		c.SampleRate = 48000
	}
	if c.Encoding == "" {
		c.Encoding = "WEBM_OPUS"
	}
}

// Controller is the conversational turn state machine. All mutation happens
// under one mutex; the recognizer callbacks, the silence timer, and backend
// completions are the only asynchronous entry points.
type Controller struct {
	cfg        Config
	backend    Backend
	recognizer repositories.Recognizer
	logger     *zap.Logger

	// Visual supplies the current sketch export or uploaded photo, and
	// whether the active view wants it attached (false once the chat view
	// is already showing). Nil means no visual context ever.
	Visual func() ([]byte, bool)

	// OnEvent receives controller notifications. Optional.
	OnEvent func(Event)

	mu         sync.Mutex
	state      State
	transcript string
	history    []entities.ChatEntry
	capture    repositories.Capture
	silence    *time.Timer
	timerGen   uint64
	inFlight   bool
	resultImg  string
}

// NewController wires a controller. recognizer may be nil; voice features
// then degrade to text-only interaction.
func NewController(cfg Config, backend Backend, recognizer repositories.Recognizer, logger *zap.Logger) *Controller {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:        cfg,
		backend:    backend,
		recognizer: recognizer,
		logger:     logger,
		state:      StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns the live transcript of the current listening session.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// History returns a copy of the chat history accumulated this session.
func (c *Controller) History() []entities.ChatEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entities.ChatEntry, len(c.history))
	copy(out, c.history)
	return out
}

// ResultImage returns the most recent generated image data URL, if any.
func (c *Controller) ResultImage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resultImg
}

// ConfigureAudio adjusts the capture parameters for subsequent listening
// sessions. Zero or empty values leave the current setting unchanged. Ignored
// while listening.
func (c *Controller) ConfigureAudio(sampleRate int, encoding, language string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateListening {
		return
	}
	if sampleRate > 0 {
		c.cfg.SampleRate = sampleRate
	}
	if encoding != "" {
		c.cfg.Encoding = encoding
	}
	if language != "" {
		c.cfg.Language = language
	}
}

// StartListening resets the transcript and starts continuous speech capture
// for the configured language.
func (c *Controller) StartListening(ctx context.Context) error {
	if c.recognizer == nil {
		return ErrSpeechUnavailable
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	c.state = StateListening
	c.transcript = ""
	c.mu.Unlock()

	cfg := repositories.SpeechConfig{
		SampleRate: c.cfg.SampleRate,
		Encoding:   c.cfg.Encoding,
		Language:   c.cfg.Language,
	}
	capture, err := c.recognizer.Start(ctx, cfg, c.handleUpdate, c.handleEngineEnd)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.capture = capture
	c.mu.Unlock()

	c.emit(Event{Type: EventState, Text: string(StateListening)})
	c.logger.Info("Listening started",
		zap.String("sessionID", c.cfg.SessionID),
		zap.String("language", cfg.Language))
	return nil
}

// WriteAudio forwards raw audio into the active capture session. No-op when
// not listening.
func (c *Controller) WriteAudio(data []byte) error {
	c.mu.Lock()
	capture := c.capture
	listening := c.state == StateListening
	c.mu.Unlock()

	if !listening || capture == nil {
		return nil
	}
	return capture.Write(data)
}

// StopListening ends capture explicitly. A non-empty transcript is sent as a
// turn, matching the automatic silence-timeout path.
func (c *Controller) StopListening(ctx context.Context) {
	c.endListening(ctx, true)
}

// handleUpdate is the recognition callback: it replaces the transcript with
// the engine's full stabilized result set and atomically cancel-and-
// reschedules the silence timer. There is no window in which a stale timer
// can fire against new speech: firing is gated on the generation counter
// taken under the same lock.
func (c *Controller) handleUpdate(u repositories.RecognitionUpdate) {
	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		return
	}
	c.transcript = u.Transcript
	c.rescheduleSilenceLocked()
	c.mu.Unlock()

	c.emit(Event{Type: EventTranscript, Text: u.Transcript})
}

// rescheduleSilenceLocked arms the single-slot silence timer. Callers hold mu.
func (c *Controller) rescheduleSilenceLocked() {
	if c.silence != nil {
		c.silence.Stop()
	}
	c.timerGen++
	gen := c.timerGen
	c.silence = time.AfterFunc(c.cfg.SilenceTimeout, func() {
		c.silenceExpired(gen)
	})
}

// cancelSilenceLocked disarms the timer and invalidates any in-flight firing.
func (c *Controller) cancelSilenceLocked() {
	if c.silence != nil {
		c.silence.Stop()
		c.silence = nil
	}
	c.timerGen++
}

func (c *Controller) silenceExpired(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen || c.state != StateListening {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.logger.Debug("Silence timeout elapsed", zap.String("sessionID", c.cfg.SessionID))
	c.endListening(context.Background(), true)
}

// handleEngineEnd fires when the capture engine itself signals end-of-session.
func (c *Controller) handleEngineEnd(err error) {
	if err != nil {
		c.logger.Warn("Speech capture ended with error",
			zap.String("sessionID", c.cfg.SessionID),
			zap.Error(err))
	}
	c.endListening(context.Background(), true)
}

// endListening stops capture and transitions Listening → Idle. When send is
// true and the accumulated transcript is non-empty, the transcript becomes a
// turn. When send is false the in-progress transcript is superseded.
func (c *Controller) endListening(ctx context.Context, send bool) {
	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		return
	}
	c.cancelSilenceLocked()
	capture := c.capture
	c.capture = nil
	c.state = StateIdle
	text := c.transcript
	c.mu.Unlock()

	if capture != nil {
		if err := capture.Stop(); err != nil {
			c.logger.Warn("Failed to stop speech capture", zap.Error(err))
		}
	}
	c.emit(Event{Type: EventState, Text: string(StateIdle)})

	if send && text != "" {
		if err := c.SendTurn(ctx, text); err != nil {
			c.logger.Warn("Turn not sent", zap.Error(err))
		}
	}
}

// SendTurn appends the user entry optimistically and issues one chat request.
// On success the agent reply is appended; on failure a fixed fallback reply
// is appended and the error is reported to the log collaborator.
func (c *Controller) SendTurn(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	c.inFlight = true
	c.state = StateAwaitingReply
	c.history = append(c.history, entities.ChatEntry{Role: entities.RoleUser, Text: text})
	c.mu.Unlock()

	c.emit(Event{Type: EventUserTurn, Text: text})
	c.emit(Event{Type: EventState, Text: string(StateAwaitingReply)})

	req := ChatRequest{
		Text:          text,
		SessionID:     c.cfg.SessionID,
		GenerateImage: false,
	}
	if c.Visual != nil {
		if img, attach := c.Visual(); attach && len(img) >= c.cfg.MinImageBytes {
			req.Image = img
		}
	}

	resp, err := c.backend.ChatToDraw(ctx, req)

	reply := resp.AgentMessage
	if err != nil {
		c.logger.Error("Chat turn failed",
			zap.String("sessionID", c.cfg.SessionID),
			zap.Error(err))
		reply = c.cfg.FallbackReply
		go c.backend.ReportError(context.Background(), err.Error(), "", "chat-to-draw")
	}

	c.mu.Lock()
	c.history = append(c.history, entities.ChatEntry{Role: entities.RoleAgent, Text: reply})
	c.inFlight = false
	c.state = StateIdle
	c.mu.Unlock()

	c.emit(Event{Type: EventAgentReply, Text: reply})
	c.emit(Event{Type: EventState, Text: string(StateIdle)})
	return nil
}

// TriggerGeneration is the explicit "magic" action. If currently listening,
// capture is force-stopped first and the in-progress transcript is superseded
// rather than sent as a separate turn. The request carries the fixed
// summarizing instruction and the full serialized chat history. The
// controller always returns to ready, success or not.
func (c *Controller) TriggerGeneration(ctx context.Context) error {
	c.endListening(ctx, false)

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrBusy
	}
	c.inFlight = true
	c.state = StateGenerating
	history := make([]entities.ChatEntry, len(c.history))
	copy(history, c.history)
	c.mu.Unlock()

	c.emit(Event{Type: EventState, Text: string(StateGenerating)})
	c.logger.Info("Generation requested",
		zap.String("sessionID", c.cfg.SessionID),
		zap.Int("historyLen", len(history)))

	req := ChatRequest{
		Text:          c.cfg.GenerateInstruction,
		SessionID:     c.cfg.SessionID,
		GenerateImage: true,
		History:       history,
	}
	if c.Visual != nil {
		if img, attach := c.Visual(); attach && len(img) >= c.cfg.MinImageBytes {
			req.Image = img
		}
	}

	resp, err := c.backend.ChatToDraw(ctx, req)

	c.mu.Lock()
	if err == nil {
		if resp.GeneratedImage != "" {
			c.resultImg = resp.GeneratedImage
		}
		if resp.AgentMessage != "" {
			c.history = append(c.history, entities.ChatEntry{Role: entities.RoleAgent, Text: resp.AgentMessage})
		}
	}
	c.inFlight = false
	c.state = StateIdle
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("Image generation failed",
			zap.String("sessionID", c.cfg.SessionID),
			zap.Error(err))
		c.emit(Event{Type: EventNotice, Text: "그림을 만들지 못했어. 다시 해 볼까?"})
		c.emit(Event{Type: EventState, Text: string(StateIdle)})
		return err
	}

	if resp.GeneratedImage != "" {
		c.emit(Event{Type: EventResultImage, Text: resp.GeneratedImage})
	}
	if resp.AgentMessage != "" {
		c.emit(Event{Type: EventAgentReply, Text: resp.AgentMessage})
	}
	c.emit(Event{Type: EventState, Text: string(StateIdle)})
	return nil
}

func (c *Controller) emit(e Event) {
	if c.OnEvent != nil {
		c.OnEvent(e)
	}
}
