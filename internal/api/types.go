package api

import "time"

// SessionResponse is returned by POST /session: the opaque session
// identifier for the page load plus the token gating the websocket.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChatToDrawResponse is the reply of POST /chat-to-draw.
type ChatToDrawResponse struct {
	AgentMessage   string `json:"agent_message"`
	GeneratedImage string `json:"generated_image,omitempty"`
}

// GenerateImageResponse is the reply of the legacy POST /generate-image.
type GenerateImageResponse struct {
	Image string `json:"image"`
}

// ErrorReport is the body of POST /log-error.
type ErrorReport struct {
	Source  string `json:"source"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
	Info    string `json:"info"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
