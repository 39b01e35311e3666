package websocket

import (
	"encoding/json"
	"time"

	"github.com/magicsketchbook/server/turn"
)

// Control message types accepted from the client.
const (
	msgListeningStart    = "listening_start"
	msgListeningEnd      = "listening_end"
	msgTriggerGeneration = "trigger_generation"
	msgChat              = "chat"
	msgPing              = "ping"
)

// inboundMessage is the envelope for text-frame control messages. Binary
// frames carry raw audio and bypass this envelope entirely.
type inboundMessage struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	Language   string `json:"language,omitempty"`
}

// outboundMessage is the envelope for everything the server pushes.
type outboundMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Image     string `json:"image,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func (m outboundMessage) marshal() []byte {
	data, _ := json.Marshal(m)
	return data
}

// eventMessage translates a controller event into the wire envelope. The
// generated image rides in its own field so clients need not sniff the text.
func eventMessage(sessionID string, e turn.Event) outboundMessage {
	msg := outboundMessage{
		Type:      string(e.Type),
		SessionID: sessionID,
	}
	if e.Type == turn.EventResultImage {
		msg.Image = e.Text
	} else {
		msg.Text = e.Text
	}
	return msg
}

func errorMessage(sessionID, detail string) outboundMessage {
	return outboundMessage{
		Type:      "error",
		SessionID: sessionID,
		Error:     detail,
		Timestamp: time.Now().Unix(),
	}
}
