// Package websocket carries the realtime transport: audio frames stream up,
// transcript and turn events stream down. Each connected client runs its own
// turn controller against the in-process conversation service.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/magicsketchbook/server/domain/repositories"
	"github.com/magicsketchbook/server/internal/auth"
	"github.com/magicsketchbook/server/turn"
	"github.com/magicsketchbook/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The session token already gates the connection.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients.
type Hub struct {
	// Registered clients, keyed by session ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	mu sync.RWMutex

	conversation *usecase.Conversation
	recognizer   repositories.Recognizer
	jwtSecret    []byte

	logger *zap.Logger
}

// NewHub creates a hub. recognizer may be nil; clients then get text-only
// interaction and listening_start is answered with an error message.
func NewHub(
	conversation *usecase.Conversation,
	recognizer repositories.Recognizer,
	jwtSecret []byte,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		conversation: conversation,
		recognizer:   recognizer,
		jwtSecret:    jwtSecret,
		logger:       logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if prev, ok := h.clients[client.sessionID]; ok {
				close(prev.send)
			}
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.sessionID]; ok && current == client {
				delete(h.clients, client.sessionID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))
		}
	}
}

// ActiveSessions lists the session IDs with a live connection.
func (h *Hub) ActiveSessions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.clients))
	for id := range h.clients {
		out = append(out, id)
	}
	return out
}

// WriteData is one outbound websocket frame.
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	sessionID string

	ctrl *turn.Controller

	logger *zap.Logger
}

// HandleWebSocket authenticates the session token from the query string and
// upgrades the connection. The echo route registers this directly.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	claims, err := auth.ValidateToken(token, hub.jwtSecret)
	if err != nil {
		logger.Warn("Rejected websocket connection", zap.Error(err))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(hub, conn, claims.SessionID, logger)
	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return nil
}

func newClient(hub *Hub, conn *websocket.Conn, sessionID string, logger *zap.Logger) *Client {
	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, 256),
		sessionID: sessionID,
		logger:    logger,
	}

	backend := &conversationBackend{
		conversation: hub.conversation,
		logger:       logger,
	}
	client.ctrl = turn.NewController(
		turn.Config{SessionID: sessionID},
		backend,
		hub.recognizer,
		logger,
	)
	client.ctrl.OnEvent = func(e turn.Event) {
		client.push(eventMessage(sessionID, e))
	}
	return client
}

// push queues one text frame, dropping it when the client cannot keep up.
func (c *Client) push(msg outboundMessage) {
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: msg.marshal()}:
	default:
		c.logger.Warn("Dropping message for slow client",
			zap.String("sessionID", c.sessionID),
			zap.String("type", msg.Type))
	}
}

// readPump pumps messages from the websocket connection to the controller.
func (c *Client) readPump() {
	defer func() {
		c.ctrl.StopListening(context.Background())
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches one control message.
func (c *Client) processMessage(message []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Error("Failed to parse message", zap.Error(err))
		c.push(errorMessage(c.sessionID, "invalid message"))
		return
	}

	switch msg.Type {
	case msgListeningStart:
		c.handleListeningStart(msg)
	case msgListeningEnd:
		// Stopping may flush a turn to the backend, so it must not block
		// the read loop.
		go c.ctrl.StopListening(context.Background())
	case msgTriggerGeneration:
		go func() {
			if err := c.ctrl.TriggerGeneration(context.Background()); err != nil {
				c.logger.Warn("Generation request rejected",
					zap.String("sessionID", c.sessionID),
					zap.Error(err))
			}
		}()
	case msgChat:
		text := msg.Text
		if text == "" {
			c.push(errorMessage(c.sessionID, "empty chat text"))
			return
		}
		go func() {
			if err := c.ctrl.SendTurn(context.Background(), text); err != nil {
				c.logger.Warn("Chat turn rejected",
					zap.String("sessionID", c.sessionID),
					zap.Error(err))
			}
		}()
	case msgPing:
		c.push(outboundMessage{
			Type:      "pong",
			SessionID: c.sessionID,
			Timestamp: time.Now().Unix(),
		})
	default:
		c.logger.Warn("Unknown message type", zap.String("type", msg.Type))
	}
}

// processAudioChunk forwards one binary audio frame into the active capture.
func (c *Client) processAudioChunk(data []byte) {
	if err := c.ctrl.WriteAudio(data); err != nil {
		c.logger.Error("Failed to stream audio data",
			zap.String("sessionID", c.sessionID),
			zap.Error(err))
	}
}

// handleListeningStart starts continuous capture for this client.
func (c *Client) handleListeningStart(msg inboundMessage) {
	c.ctrl.ConfigureAudio(msg.SampleRate, msg.Encoding, msg.Language)

	if err := c.ctrl.StartListening(context.Background()); err != nil {
		c.logger.Warn("Failed to start listening",
			zap.String("sessionID", c.sessionID),
			zap.Error(err))
		c.push(errorMessage(c.sessionID, err.Error()))
		return
	}

	c.push(outboundMessage{
		Type:      msgListeningStart,
		SessionID: c.sessionID,
		Timestamp: time.Now().Unix(),
	})
}

// conversationBackend satisfies turn.Backend in-process, so websocket clients
// share one code path with HTTP callers going through the relay.
type conversationBackend struct {
	conversation *usecase.Conversation
	logger       *zap.Logger
}

func (b *conversationBackend) ChatToDraw(ctx context.Context, req turn.ChatRequest) (turn.ChatResponse, error) {
	in := usecase.TurnInput{
		SessionID:     req.SessionID,
		Text:          req.Text,
		GenerateImage: req.GenerateImage,
		History:       req.History,
	}
	if len(req.Image) > 0 {
		in.Image = req.Image
		in.ImageMIME = "image/png"
	}

	out, err := b.conversation.HandleTurn(ctx, in)
	if err != nil {
		return turn.ChatResponse{}, err
	}
	return turn.ChatResponse{
		AgentMessage:   out.AgentMessage,
		GeneratedImage: out.GeneratedImage,
	}, nil
}

func (b *conversationBackend) ReportError(ctx context.Context, message, stack, info string) {
	b.logger.Warn("Client error reported",
		zap.String("message", message),
		zap.String("stack", stack),
		zap.String("info", info))
}
