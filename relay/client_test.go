package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/magicsketchbook/server/domain/entities"
	"github.com/magicsketchbook/server/turn"
)

func TestChatToDrawMultipartEncoding(t *testing.T) {
	var gotText, gotSession, gotFlag, gotHistory string
	var gotFile []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat-to-draw" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			t.Fatalf("Not a multipart request: %v", err)
		}
		gotText = r.FormValue("user_text")
		gotSession = r.FormValue("session_id")
		gotFlag = r.FormValue("generate_image")
		gotHistory = r.FormValue("chat_history")

		if file, _, err := r.FormFile("file"); err == nil {
			gotFile, _ = io.ReadAll(file)
			file.Close()
		}

		json.NewEncoder(w).Encode(map[string]string{
			"agent_message":   "와, 멋진 그림이야!",
			"generated_image": "data:image/png;base64,abc",
		})
	}))
	defer server.Close()

	client := New(server.URL, zap.NewNop())

	resp, err := client.ChatToDraw(context.Background(), turn.ChatRequest{
		Text:          "그림 그려",
		SessionID:     "sess-1",
		GenerateImage: true,
		Image:         []byte("pretend-png-bytes"),
		History: []entities.ChatEntry{
			{Role: entities.RoleUser, Text: "안녕"},
			{Role: entities.RoleAgent, Text: "안녕!"},
		},
	})
	if err != nil {
		t.Fatalf("ChatToDraw failed: %v", err)
	}

	if gotText != "그림 그려" {
		t.Errorf("user_text = %q", gotText)
	}
	if gotSession != "sess-1" {
		t.Errorf("session_id = %q", gotSession)
	}
	if gotFlag != "true" {
		t.Errorf("generate_image = %q", gotFlag)
	}
	if string(gotFile) != "pretend-png-bytes" {
		t.Errorf("file payload = %q", gotFile)
	}

	var history []entities.ChatEntry
	if err := json.Unmarshal([]byte(gotHistory), &history); err != nil {
		t.Fatalf("chat_history is not valid JSON: %v", err)
	}
	if len(history) != 2 || history[0].Text != "안녕" || history[1].Role != entities.RoleAgent {
		t.Errorf("chat_history mismatch: %+v", history)
	}

	if resp.AgentMessage != "와, 멋진 그림이야!" {
		t.Errorf("AgentMessage = %q", resp.AgentMessage)
	}
	if resp.GeneratedImage != "data:image/png;base64,abc" {
		t.Errorf("GeneratedImage = %q", resp.GeneratedImage)
	}
}

func TestChatToDrawOmitsOptionalFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		if _, _, err := r.FormFile("file"); err == nil {
			t.Error("No file part expected")
		}
		if r.FormValue("chat_history") != "" {
			t.Error("No chat_history expected")
		}
		if r.FormValue("generate_image") != "false" {
			t.Errorf("generate_image = %q", r.FormValue("generate_image"))
		}
		json.NewEncoder(w).Encode(map[string]string{"agent_message": "응!"})
	}))
	defer server.Close()

	client := New(server.URL, zap.NewNop())
	resp, err := client.ChatToDraw(context.Background(), turn.ChatRequest{
		Text:      "안녕",
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("ChatToDraw failed: %v", err)
	}
	if resp.GeneratedImage != "" {
		t.Errorf("Expected no generated image, got %q", resp.GeneratedImage)
	}
}

func TestChatToDrawServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, zap.NewNop())
	if _, err := client.ChatToDraw(context.Background(), turn.ChatRequest{Text: "x", SessionID: "s"}); err == nil {
		t.Fatal("Expected error for 500 response")
	}
}

func TestReportErrorFireAndForget(t *testing.T) {
	received := make(chan map[string]string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		received <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := New(server.URL, zap.NewNop())
	client.ReportError(context.Background(), "TypeError: x is null", "stacktrace", "chat-to-draw")

	body := <-received
	if body["source"] != "frontend" {
		t.Errorf("source = %q", body["source"])
	}
	if body["message"] != "TypeError: x is null" {
		t.Errorf("message = %q", body["message"])
	}

	// A dead collaborator must not propagate an error.
	dead := New("http://127.0.0.1:1", zap.NewNop())
	dead.ReportError(context.Background(), "m", "s", "i")
}

func TestDefaultBaseURL(t *testing.T) {
	client := New("", zap.NewNop())
	if client.baseURL != DefaultBaseURL {
		t.Errorf("Expected default base URL, got %q", client.baseURL)
	}
}
