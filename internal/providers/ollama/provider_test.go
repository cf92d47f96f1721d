// internal/providers/ollama/provider_test.go
package ollama

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

// TestProviderChat verifies the request payload and that the single reply body
// is returned with its host timings.
func TestProviderChat(t *testing.T) {
	t.Parallel()

	captured := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		captured <- body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"test-model","message":{"role":"assistant","content":"final"},"done":true,"eval_count":7,"eval_duration":1000000000}`))
	}))
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	temp := 0.2
	reply, err := provider.Chat(context.Background(), providers.ChatRequest{
		Host:         appconfig.Host{Name: "test", URL: server.URL},
		Model:        "test-model",
		History:      []providers.ChatMessage{{Role: "user", Content: "hi"}},
		SystemPrompt: "be brief",
		Parameters:   appconfig.Parameters{Temperature: &temp},
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}

	if reply.Message.Content != "final" || reply.Message.Role != "assistant" {
		t.Fatalf("unexpected message: %+v", reply.Message)
	}
	if reply.Metadata.Model != "test-model" || reply.Metadata.EvalCount != 7 {
		t.Fatalf("unexpected metadata: %+v", reply.Metadata)
	}
	if rate, ok := reply.Metadata.EvalRate(); !ok || rate != 7 {
		t.Fatalf("expected eval rate 7, got %v (%v)", rate, ok)
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
		t.Fatalf("expected system + user messages, got %v", payload["messages"])
	}
	options, ok := payload["options"].(map[string]any)
	if !ok || options["temperature"] != 0.2 {
		t.Fatalf("expected temperature option, got %v", payload["options"])
	}
}

func TestProviderChatErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "status", status: http.StatusNotFound, body: `{"error":"model 'nope' not found"}`, want: "not found"},
		{name: "error field", status: http.StatusOK, body: `{"error":"out of memory"}`, want: "out of memory"},
		{name: "malformed", status: http.StatusOK, body: `{"message":`, want: "invalid chat response"},
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
				Model: "nope",
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got: %v", tc.want, err)
			}
		})
	}
}

func TestProviderListModels(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"a:1b"},{"name":"b:7b"}]}`))
		case "/api/ps":
			_, _ = w.Write([]byte(`{"models":[{"name":"b:7b"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	host := appconfig.Host{URL: server.URL}

	available, err := provider.AvailableModels(context.Background(), host)
	if err != nil {
		t.Fatalf("AvailableModels: %v", err)
	}
	if len(available) != 2 || available[0] != "a:1b" {
		t.Fatalf("unexpected available models: %v", available)
	}

	loaded, err := provider.LoadedModels(context.Background(), host)
	if err != nil {
		t.Fatalf("LoadedModels: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != "b:7b" {
		t.Fatalf("unexpected loaded models: %v", loaded)
	}
}

func TestEnsureModelReady(t *testing.T) {
	t.Parallel()

	gotModel := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		model, _ := body["model"].(string)
		gotModel <- model
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer server.Close()

	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	if err := provider.EnsureModelReady(context.Background(), appconfig.Host{URL: server.URL}, "m1"); err != nil {
		t.Fatalf("EnsureModelReady: %v", err)
	}
	if model := <-gotModel; model != "m1" {
		t.Fatalf("expected model m1 in payload, got %q", model)
	}
}

func TestHostIdentifier(t *testing.T) {
	cases := []struct {
		name string
		host appconfig.Host
		want string
	}{
		{name: "name wins", host: appconfig.Host{Name: "box", URL: "http://x"}, want: "box"},
		{name: "url fallback", host: appconfig.Host{URL: "http://x"}, want: "http://x"},
		{name: "default", host: appconfig.Host{}, want: "ollama-host"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := hostIdentifier(tc.host); got != tc.want {
				t.Fatalf("expected %q got %q", tc.want, got)
			}
		})
	}
}
