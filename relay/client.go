// Package relay is the HTTP client for the sketchbook backend: the multipart
// chat/image endpoint and the fire-and-forget frontend error log.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/magicsketchbook/server/turn"
)

// DefaultBaseURL is the local development backend address used when no base
// URL is configured.
const DefaultBaseURL = "http://localhost:8000"

// Client talks to the backend. It satisfies turn.Backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a relay client. An empty baseURL falls back to the local
// development default.
func New(baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

type chatToDrawResponse struct {
	AgentMessage   string `json:"agent_message"`
	GeneratedImage string `json:"generated_image,omitempty"`
}

// ChatToDraw issues one multipart POST /chat-to-draw request.
func (c *Client) ChatToDraw(ctx context.Context, req turn.ChatRequest) (turn.ChatResponse, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("user_text", req.Text); err != nil {
		return turn.ChatResponse{}, fmt.Errorf("write user_text: %w", err)
	}
	if err := w.WriteField("session_id", req.SessionID); err != nil {
		return turn.ChatResponse{}, fmt.Errorf("write session_id: %w", err)
	}
	flag := "false"
	if req.GenerateImage {
		flag = "true"
	}
	if err := w.WriteField("generate_image", flag); err != nil {
		return turn.ChatResponse{}, fmt.Errorf("write generate_image: %w", err)
	}

	if len(req.Image) > 0 {
		part, err := w.CreateFormFile("file", "sketch.png")
		if err != nil {
			return turn.ChatResponse{}, fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(req.Image); err != nil {
			return turn.ChatResponse{}, fmt.Errorf("write file part: %w", err)
		}
	}

	if req.History != nil {
		encoded, err := json.Marshal(req.History)
		if err != nil {
			return turn.ChatResponse{}, fmt.Errorf("encode chat_history: %w", err)
		}
		if err := w.WriteField("chat_history", string(encoded)); err != nil {
			return turn.ChatResponse{}, fmt.Errorf("write chat_history: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return turn.ChatResponse{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat-to-draw", &body)
	if err != nil {
		return turn.ChatResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return turn.ChatResponse{}, fmt.Errorf("chat-to-draw request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return turn.ChatResponse{}, fmt.Errorf("chat-to-draw returned %d: %s", resp.StatusCode, payload)
	}

	var decoded chatToDrawResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return turn.ChatResponse{}, fmt.Errorf("decode response: %w", err)
	}

	return turn.ChatResponse{
		AgentMessage:   decoded.AgentMessage,
		GeneratedImage: decoded.GeneratedImage,
	}, nil
}

// ReportError posts a frontend error report. Fire-and-forget: the response is
// ignored and a failure to log is itself ignored.
func (c *Client) ReportError(ctx context.Context, message, stack, info string) {
	payload, err := json.Marshal(map[string]string{
		"source":  "frontend",
		"message": message,
		"stack":   stack,
		"info":    info,
	})
	if err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/log-error", bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Error report not delivered", zap.Error(err))
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
