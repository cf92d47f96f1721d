// internal/providers/llamacpp/provider_test.go
package llamacpp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mwiater/parachat/internal/appconfig"
	"github.com/mwiater/parachat/internal/providers"
)

func TestChatUsesTimings(t *testing.T) {
	t.Parallel()

	captured := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		captured <- body
		_, _ = w.Write([]byte(`{"model":"qwen","choices":[{"message":{"role":"assistant","content":"answer"}}],"timings":{"prompt_n":4,"prompt_ms":10,"predicted_n":12,"predicted_ms":250}}`))
	}))
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	seed := int64(7)
	reply, err := provider.Chat(context.Background(), providers.ChatRequest{
		Host:         appconfig.Host{URL: server.URL},
		Model:        "qwen",
		History:      []providers.ChatMessage{{Role: "user", Content: "  hi  "}, {Role: "user", Content: ""}},
		SystemPrompt: "sys",
		Parameters:   appconfig.Parameters{Seed: &seed},
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if reply.Message.Content != "answer" || reply.Message.Role != "assistant" {
		t.Fatalf("unexpected message: %+v", reply.Message)
	}
	meta := reply.Metadata
	if meta.EvalCount != 12 || meta.PromptEvalCount != 4 {
		t.Fatalf("unexpected counts: %+v", meta)
	}
	if meta.EvalDuration != 250_000_000 {
		t.Fatalf("expected 250ms eval duration, got %d", meta.EvalDuration)
	}

	var payload map[string]any
	if err := json.Unmarshal(<-captured, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if stream, ok := payload["stream"].(bool); !ok || stream {
		t.Fatalf("expected stream=false, got %v", payload["stream"])
	}
	messages, ok := payload["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("expected empty user turn dropped, got %v", payload["messages"])
	}
	if payload["seed"] != float64(7) {
		t.Fatalf("expected seed 7, got %v", payload["seed"])
	}
}

func TestChatDefaultsRoleAndModel(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Hello"}}]}`))
	}))
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	reply, err := provider.Chat(context.Background(), providers.ChatRequest{
		Host:  appconfig.Host{URL: server.URL},
		Model: "fallback",
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if reply.Message.Role != "assistant" || reply.Message.Content != "Hello" {
		t.Fatalf("unexpected message: %+v", reply.Message)
	}
	if reply.Metadata.Model != "fallback" || reply.Metadata.EvalCount != 0 {
		t.Fatalf("unexpected metadata: %+v", reply.Metadata)
	}
}

func TestChatErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "status", status: http.StatusInternalServerError, body: "boom", want: "boom"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, want: "no choices"},
		{name: "malformed", status: http.StatusOK, body: `{"choices":`, want: "invalid chat response"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			provider := New(&appconfig.Config{TimeoutSeconds: 5})
			_, err := provider.Chat(context.Background(), providers.ChatRequest{
				Host:  appconfig.Host{URL: server.URL},
				Model: "m",
			})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestModelListingFallsBackToOpenAIEndpoint(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" {
			_, _ = w.Write([]byte(`{"data":[{"id":"a.gguf"},{"id":"b.gguf"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	host := appconfig.Host{URL: server.URL}

	available, err := provider.AvailableModels(context.Background(), host)
	if err != nil {
		t.Fatalf("AvailableModels: %v", err)
	}
	if len(available) != 2 || available[1] != "b.gguf" {
		t.Fatalf("unexpected models: %v", available)
	}

	loaded, err := provider.LoadedModels(context.Background(), host)
	if err != nil {
		t.Fatalf("LoadedModels: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("models without status should count as loaded, got %v", loaded)
	}
}

func TestLoadedModelsRespectsRouterStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"a","status":"loaded"},{"name":"b","status":{"value":"unloaded"}}]}`))
	}))
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	loaded, err := provider.LoadedModels(context.Background(), appconfig.Host{URL: server.URL})
	if err != nil {
		t.Fatalf("LoadedModels: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != "a" {
		t.Fatalf("expected only a, got %v", loaded)
	}
}

func TestEnsureModelReadyWithoutRouter(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	if err := provider.EnsureModelReady(context.Background(), appconfig.Host{URL: server.URL}, "m"); err != nil {
		t.Fatalf("expected missing router to be tolerated, got %v", err)
	}
}

func TestEnsureModelReadyWaitsForLoad(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/load":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"model is already loaded"}`))
		case "/models":
			_, _ = w.Write([]byte(`{"models":[{"name":"m","status":"loaded"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	if err := provider.EnsureModelReady(context.Background(), appconfig.Host{URL: server.URL}, "m"); err != nil {
		t.Fatalf("EnsureModelReady: %v", err)
	}
}
