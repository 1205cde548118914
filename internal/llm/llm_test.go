package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/atlas-insights/sibyl/internal/config"
)

func TestNew_SelectsProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		cfg      config.Config
		wantErr  bool
	}{
		{
			name:     "openai with key",
			provider: "openai",
			cfg:      config.Config{LLMProvider: "openai", OpenAIAPIKey: "sk-test"},
		},
		{
			name:     "openai missing key",
			provider: "openai",
			cfg:      config.Config{LLMProvider: "openai"},
			wantErr:  true,
		},
		{
			name:     "gemini with key",
			provider: "gemini",
			cfg:      config.Config{LLMProvider: "gemini", GeminiAPIKey: "gk-test"},
		},
		{
			name:     "grok with key and url",
			provider: "grok",
			cfg:      config.Config{LLMProvider: "grok", GrokAPIKey: "xk-test", GrokBaseURL: "https://api.x.ai/v1"},
		},
		{
			name:     "grok missing url",
			provider: "grok",
			cfg:      config.Config{LLMProvider: "grok", GrokAPIKey: "xk-test"},
			wantErr:  true,
		},
		{
			name:     "unknown provider",
			provider: "llama",
			cfg:      config.Config{LLMProvider: "llama"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if client == nil {
				t.Fatal("expected non-nil client")
			}
		})
	}
}

func newOpenAITestClient(baseURL string) *openai.Client {
	clientConfig := openai.DefaultConfig("sk-test")
	clientConfig.BaseURL = baseURL
	return openai.NewClientWithConfig(clientConfig)
}

func TestOpenAI_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "SELECT 1"}},
			},
		})
	}))
	defer srv.Close()

	o := &OpenAI{client: newOpenAITestClient(srv.URL), model: "gpt-4o"}
	got, err := o.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, 0)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != "SELECT 1" {
		t.Errorf("Chat() = %q, want %q", got, "SELECT 1")
	}
}

func TestOpenAI_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "text-embedding-3-large" {
			t.Errorf("wire model = %q, want configured embed model", req.Model)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float64{0.1, 0.2, 0.3}},
			},
			"model": req.Model,
		})
	}))
	defer srv.Close()

	o := &OpenAI{client: newOpenAITestClient(srv.URL), embedModel: "text-embedding-3-large"}
	vec, err := o.Embed(context.Background(), "projects by state")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 || vec[1] != float64(float32(0.2)) {
		t.Fatalf("Embed() = %v, want 3 converted values", vec)
	}
}

func TestGrok_EmbedUnsupported(t *testing.T) {
	g, err := NewGrok("xk-test", "https://api.x.ai/v1", "grok-2-latest")
	if err != nil {
		t.Fatalf("NewGrok() error = %v", err)
	}
	if _, err := g.Embed(context.Background(), "hello"); !errors.Is(err, ErrEmbedUnsupported) {
		t.Fatalf("Embed() error = %v, want ErrEmbedUnsupported", err)
	}
}

func TestGemini_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req geminiChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.SystemInstruction == nil {
			t.Error("expected system instruction to be lifted out of the turns")
		}
		if len(req.Contents) != 1 || req.Contents[0].Role != "user" {
			t.Errorf("unexpected contents: %+v", req.Contents)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "SELECT 1"}}}},
			},
		})
	}))
	defer srv.Close()

	g := &Gemini{apiKey: "gk-test", model: "gemini-1.5-pro", baseURL: srv.URL, client: srv.Client()}
	got, err := g.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "you are locked"},
		{Role: RoleUser, Content: "hi"},
	}, 0)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != "SELECT 1" {
		t.Errorf("Chat() = %q, want %q", got, "SELECT 1")
	}
}

func TestGemini_ChatEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	g := &Gemini{apiKey: "gk-test", model: "gemini-1.5-pro", baseURL: srv.URL, client: srv.Client()}
	if _, err := g.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, 0); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("Chat() error = %v, want ErrEmptyResponse", err)
	}
}

func TestGemini_ChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := &Gemini{apiKey: "gk-test", model: "gemini-1.5-pro", baseURL: srv.URL, client: srv.Client()}
	if _, err := g.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, 0); !errors.Is(err, ErrConnection) {
		t.Fatalf("Chat() error = %v, want ErrConnection", err)
	}
}

func TestGemini_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":embedContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float64{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	g := &Gemini{apiKey: "gk-test", embedModel: "text-embedding-004", baseURL: srv.URL, client: srv.Client()}
	vec, err := g.Embed(context.Background(), "projects by state")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("Embed() returned %d values, want 3", len(vec))
	}
}
