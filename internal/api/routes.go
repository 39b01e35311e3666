// Package api wires the HTTP surface of the sketchbook backend.
package api

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/magicsketchbook/server/adapters/imagegen"
	"github.com/magicsketchbook/server/domain/entities"
	"github.com/magicsketchbook/server/domain/repositories"
	"github.com/magicsketchbook/server/internal/auth"
	"github.com/magicsketchbook/server/usecase"
)

// maxUploadBytes caps sketch/photo uploads.
const maxUploadBytes = 16 << 20

// Handlers carries the dependencies of the HTTP surface.
type Handlers struct {
	Conversation *usecase.Conversation
	Images       repositories.ImageGenerator
	JWTSecret    []byte
	Logger       *zap.Logger
}

// InitRoutes registers all routes on the echo instance. The websocket
// endpoint is registered by the caller alongside these.
func InitRoutes(e *echo.Echo, h *Handlers) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "sketchbook-server",
		})
	})

	e.POST("/session", h.createSession)
	e.POST("/chat-to-draw", h.chatToDraw)
	e.POST("/generate-image", h.generateImage)
	e.POST("/log-error", h.logError)
}

// createSession mints the opaque session identifier for one page load plus
// the token gating the websocket transport.
func (h *Handlers) createSession(c echo.Context) error {
	sessionID := uuid.NewString()

	token, err := auth.GenerateSessionToken(sessionID, h.JWTSecret)
	if err != nil {
		h.Logger.Error("Failed to generate session token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	h.Logger.Info("Session created", zap.String("session_id", sessionID))

	return c.JSON(http.StatusOK, SessionResponse{
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: time.Now().Add(auth.TokenTTL),
	})
}

// chatToDraw handles one conversational turn, optionally with image
// generation.
func (h *Handlers) chatToDraw(c echo.Context) error {
	userText := c.FormValue("user_text")
	sessionID := c.FormValue("session_id")
	generate := c.FormValue("generate_image") == "true"

	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "session_id is required",
		})
	}

	in := usecase.TurnInput{
		SessionID:     sessionID,
		Text:          userText,
		GenerateImage: generate,
	}

	if file, err := c.FormFile("file"); err == nil {
		data, mime, err := readUpload(file)
		if err != nil {
			h.Logger.Warn("Failed to read uploaded file", zap.Error(err))
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_file",
				Message: "Could not read uploaded image",
			})
		}
		in.Image = data
		in.ImageMIME = mime
	}

	if raw := c.FormValue("chat_history"); raw != "" {
		history, err := entities.ParseHistory([]byte(raw))
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_chat_history",
				Message: "chat_history is not valid JSON",
			})
		}
		in.History = history
	}

	out, err := h.Conversation.HandleTurn(c.Request().Context(), in)
	if err != nil {
		h.Logger.Error("Turn failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "turn_failed",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, ChatToDrawResponse{
		AgentMessage:   out.AgentMessage,
		GeneratedImage: out.GeneratedImage,
	})
}

// generateImage is the legacy single-shot endpoint: a sketch upload plus an
// optional style prompt, no conversation.
func (h *Handlers) generateImage(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_file",
			Message: "A sketch upload is required",
		})
	}

	data, mime, err := readUpload(file)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_file",
			Message: "Could not read uploaded image",
		})
	}

	stylePrompt := c.FormValue("style_prompt")
	if stylePrompt == "" {
		stylePrompt = "3D render"
	}

	generated, err := h.Images.Generate(c.Request().Context(), repositories.ImageRequest{
		Prompt:     imagegen.BasePrompt + " Style: " + stylePrompt,
		Sketch:     data,
		SketchMIME: mime,
	})
	if err != nil {
		h.Logger.Error("Image generation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "generation_failed",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, GenerateImageResponse{
		Image: dataURL(generated),
	})
}

// logError records a frontend error report. The response carries no body;
// clients fire and forget.
func (h *Handlers) logError(c echo.Context) error {
	var report ErrorReport
	if err := c.Bind(&report); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid report format",
		})
	}

	h.Logger.Warn("Frontend error reported",
		zap.String("source", report.Source),
		zap.String("message", report.Message),
		zap.String("stack", report.Stack),
		zap.String("info", report.Info))

	return c.NoContent(http.StatusNoContent)
}

func readUpload(file *multipart.FileHeader) ([]byte, string, error) {
	src, err := file.Open()
	if err != nil {
		return nil, "", err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes))
	if err != nil {
		return nil, "", err
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return data, contentType, nil
}

func dataURL(img *repositories.GeneratedImage) string {
	return "data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
