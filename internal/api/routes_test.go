package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/magicsketchbook/server/adapters/agent"
	"github.com/magicsketchbook/server/adapters/imagegen"
	"github.com/magicsketchbook/server/adapters/memory"
	"github.com/magicsketchbook/server/internal/auth"
	"github.com/magicsketchbook/server/usecase"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	logger := zap.NewNop()
	images := imagegen.NewMock()
	conversation := usecase.NewConversation(agent.NewMock(), images, memory.NewSessionStore(), logger)

	e := echo.New()
	InitRoutes(e, &Handlers{
		Conversation: conversation,
		Images:       images,
		JWTSecret:    []byte("test-secret"),
		Logger:       logger,
	})
	return e
}

func TestHealth(t *testing.T) {
	e := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestCreateSession(t *testing.T) {
	e := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/session", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad response: %v", err)
	}
	if body.SessionID == "" {
		t.Error("Expected a session id")
	}

	claims, err := auth.ValidateToken(body.Token, []byte("test-secret"))
	if err != nil {
		t.Fatalf("Token does not validate: %v", err)
	}
	if claims.SessionID != body.SessionID {
		t.Errorf("Token session %q != %q", claims.SessionID, body.SessionID)
	}
}

func multipartBody(t *testing.T, fields map[string]string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	if fileContent != nil {
		part, err := w.CreateFormFile("file", "sketch.png")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(fileContent)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestChatToDraw(t *testing.T) {
	e := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{
		"user_text":      "공룡 그려 줘",
		"session_id":     "sess-1",
		"generate_image": "false",
	}, []byte("sketch-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/chat-to-draw", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ChatToDrawResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.AgentMessage == "" {
		t.Error("Expected an agent message")
	}
	if resp.GeneratedImage != "" {
		t.Errorf("No image requested, got %q", resp.GeneratedImage)
	}
}

func TestChatToDrawWithGeneration(t *testing.T) {
	e := newTestServer(t)

	history := `[{"role":"user","text":"무지개 고양이"},{"role":"agent","text":"좋아!"}]`
	body, contentType := multipartBody(t, map[string]string{
		"user_text":      "그림 그려 줘",
		"session_id":     "sess-1",
		"generate_image": "true",
		"chat_history":   history,
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat-to-draw", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ChatToDrawResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp.GeneratedImage, "data:image/png;base64,") {
		t.Errorf("Expected data URL image, got %q", resp.GeneratedImage)
	}
}

func TestChatToDrawRequiresSession(t *testing.T) {
	e := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{"user_text": "hi"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/chat-to-draw", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestChatToDrawRejectsBadHistory(t *testing.T) {
	e := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{
		"user_text":    "hi",
		"session_id":   "sess-1",
		"chat_history": "not-json",
	}, nil)
	req := httptest.NewRequest(http.MethodPost, "/chat-to-draw", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateImageLegacyEndpoint(t *testing.T) {
	e := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{
		"style_prompt": "watercolor",
	}, []byte("sketch-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/generate-image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp GenerateImageResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp.Image, "data:image/png;base64,") {
		t.Errorf("Expected data URL, got %q", resp.Image)
	}
}

func TestGenerateImageRequiresFile(t *testing.T) {
	e := newTestServer(t)

	body, contentType := multipartBody(t, map[string]string{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/generate-image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestLogError(t *testing.T) {
	e := newTestServer(t)

	payload := `{"source":"frontend","message":"TypeError","stack":"at x","info":"chat"}`
	req := httptest.NewRequest(http.MethodPost, "/log-error", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
}
