// internal/providers/ollama/provider.go
// Package ollama talks to Ollama hosts over their native /api endpoints.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/parachat/internal/appconfig"
	"github.com/mwiater/parachat/internal/logging"
	"github.com/mwiater/parachat/internal/providers"
)

// Provider is a providers.ChatProvider for Ollama hosts.
type Provider struct {
	client  *http.Client
	timeout time.Duration
}

// New returns a Provider whose requests are bounded by cfg.RequestTimeout().
func New(cfg *appconfig.Config) *Provider {
	timeout := cfg.RequestTimeout()
	return &Provider{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		timeout: timeout,
	}
}

// modelListResponse is shared by /api/tags and /api/ps.
type modelListResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// chatResponse is the /api/chat body when streaming is off.
type chatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Error              string `json:"error,omitempty"`
	TotalDuration      int64  `json:"total_duration"`
	LoadDuration       int64  `json:"load_duration"`
	PromptEvalCount    int    `json:"prompt_eval_count"`
	PromptEvalDuration int64  `json:"prompt_eval_duration"`
	EvalCount          int    `json:"eval_count"`
	EvalDuration       int64  `json:"eval_duration"`
}

func (c chatResponse) metadata(fallbackModel string) providers.ReplyMetadata {
	modelName := c.Model
	if modelName == "" {
		modelName = fallbackModel
	}
	return providers.ReplyMetadata{
		Model:              modelName,
		CreatedAt:          time.Now(),
		TotalDuration:      c.TotalDuration,
		LoadDuration:       c.LoadDuration,
		PromptEvalCount:    c.PromptEvalCount,
		PromptEvalDuration: c.PromptEvalDuration,
		EvalCount:          c.EvalCount,
		EvalDuration:       c.EvalDuration,
	}
}

// AvailableModels returns the models installed on the host.
func (p *Provider) AvailableModels(ctx context.Context, host appconfig.Host) ([]string, error) {
	return p.listModels(ctx, host, "/api/tags")
}

// LoadedModels returns the models currently loaded in memory on the host.
func (p *Provider) LoadedModels(ctx context.Context, host appconfig.Host) ([]string, error) {
	return p.listModels(ctx, host, "/api/ps")
}

func (p *Provider) listModels(ctx context.Context, host appconfig.Host, path string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := host.URL + path
	logging.LogRequest("PARACHAT->LLM", hostIdentifier(host), "", map[string]string{"method": http.MethodGet, "url": endpoint})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: %s returned %s", path, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logging.LogRequest("LLM->PARACHAT", hostIdentifier(host), "", body)

	var list modelListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, err
	}

	names := make([]string, len(list.Models))
	for i, m := range list.Models {
		names[i] = m.Name
	}
	return names, nil
}

// EnsureModelReady sends an empty generate request, which makes Ollama load
// model into memory without producing output.
func (p *Provider) EnsureModelReady(ctx context.Context, host appconfig.Host, model string) error {
	body, err := json.Marshal(map[string]any{"model": model})
	if err != nil {
		return err
	}
	logging.LogRequest("PARACHAT->LLM", hostIdentifier(host), model, body)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host.URL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	logging.LogRequest("LLM->PARACHAT", hostIdentifier(host), model, respBody)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: /api/generate returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Chat posts to /api/chat with stream=false and decodes the single reply body.
func (p *Provider) Chat(ctx context.Context, req providers.ChatRequest) (providers.ChatReply, error) {
	messages := req.History
	if req.SystemPrompt != "" {
		messages = append([]providers.ChatMessage{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}
	if len(messages) == 0 {
		messages = []providers.ChatMessage{}
	}
	hostID := hostIdentifier(req.Host)

	body, err := json.Marshal(map[string]any{
		"model":    req.Model,
		"messages": messages,
		"options":  buildOptions(req.Parameters),
		"stream":   false,
	})
	if err != nil {
		return providers.ChatReply{}, err
	}
	logging.LogRequest("PARACHAT->LLM", hostID, req.Model, body)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Host.URL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return providers.ChatReply{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return providers.ChatReply{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.ChatReply{}, err
	}
	logging.LogRequest("LLM->PARACHAT", hostID, req.Model, raw)

	if resp.StatusCode != http.StatusOK {
		return providers.ChatReply{}, fmt.Errorf("ollama: /api/chat returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var result chatResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return providers.ChatReply{}, fmt.Errorf("ollama: invalid chat response: %w", err)
	}
	if result.Error != "" {
		return providers.ChatReply{}, fmt.Errorf("ollama: %s", result.Error)
	}

	role := result.Message.Role
	if role == "" {
		role = "assistant"
	}
	return providers.ChatReply{
		Message:  providers.ChatMessage{Role: role, Content: result.Message.Content},
		Metadata: result.metadata(req.Model),
	}, nil
}

func buildOptions(params appconfig.Parameters) map[string]any {
	options := map[string]any{}
	if params.TopK != nil {
		options["top_k"] = *params.TopK
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MinP != nil {
		options["min_p"] = *params.MinP
	}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.RepeatPenalty != nil {
		options["repeat_penalty"] = *params.RepeatPenalty
	}
	if params.PresencePenalty != nil {
		options["presence_penalty"] = *params.PresencePenalty
	}
	if params.FrequencyPenalty != nil {
		options["frequency_penalty"] = *params.FrequencyPenalty
	}
	if params.Seed != nil {
		options["seed"] = *params.Seed
	}
	if params.NumPredict != nil {
		options["num_predict"] = *params.NumPredict
	}
	return options
}

// hostIdentifier prefers the configured host name over its URL.
func hostIdentifier(host appconfig.Host) string {
	if name := strings.TrimSpace(host.Name); name != "" {
		return name
	}
	if url := strings.TrimSpace(host.URL); url != "" {
		return url
	}
	return "ollama-host"
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}
