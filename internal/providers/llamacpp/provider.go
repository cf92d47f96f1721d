// internal/providers/llamacpp/provider.go
// Package llamacpp talks to llama-server through its OpenAI-compatible endpoints.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/parachat/internal/appconfig"
	"github.com/mwiater/parachat/internal/logging"
	"github.com/mwiater/parachat/internal/providers"
)

// Provider is a providers.ChatProvider for llama.cpp hosts.
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

type modelsResponse struct {
	Data   []llamaModel `json:"data"`
	Models []llamaModel `json:"models"`
}

type llamaModel struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Model  string      `json:"model"`
	Status statusField `json:"status"`
}

// timings is the llama-server extension attached to chat completions.
type timings struct {
	PromptN     int     `json:"prompt_n"`
	PromptMS    float64 `json:"prompt_ms"`
	PredictedN  int     `json:"predicted_n"`
	PredictedMS float64 `json:"predicted_ms"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Timings *timings `json:"timings,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AvailableModels returns every model known to the server, loaded or not.
func (p *Provider) AvailableModels(ctx context.Context, host appconfig.Host) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	models, err := p.fetchModels(ctx, host)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		if name := modelDisplayName(m); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// LoadedModels lists models whose router status is loaded. Single-model
// servers report no status, so their model counts as loaded.
// Servers without router status report every listed model as loaded.
func (p *Provider) LoadedModels(ctx context.Context, host appconfig.Host) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	models, err := p.fetchModels(ctx, host)
	if err != nil {
		return nil, err
	}

	var loaded []string
	for _, model := range models {
		status := modelStatusValue(model)
		if status == "" || strings.EqualFold(status, "loaded") {
			if name := modelDisplayName(model); name != "" {
				loaded = append(loaded, name)
			}
		}
	}
	return loaded, nil
}

// EnsureModelReady asks a router-mode server to load model and waits until
// it reports loaded. Servers without router endpoints load on first use.
func (p *Provider) EnsureModelReady(ctx context.Context, host appconfig.Host, model string) error {
	body, err := json.Marshal(map[string]any{"model": model})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	logging.LogRequest("PARACHAT->LLM", hostIdentifier(host), model, body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host.URL+"/models/load", bytes.NewReader(body))
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

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
		// Router endpoints not available; rely on auto-loading on first request.
		return nil
	}
	if resp.StatusCode >= 400 && !isAlreadyLoadedError(resp.StatusCode, respBody) {
		return fmt.Errorf("llama.cpp: /models/load returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return p.waitForModelLoaded(ctx, host, model)
}

// Chat posts to /v1/chat/completions with stream=false and returns the first
// choice. llama-server timings, when present, fill the reply metadata.
func (p *Provider) Chat(ctx context.Context, req providers.ChatRequest) (providers.ChatReply, error) {
	messages := req.History
	if req.SystemPrompt != "" {
		messages = append([]providers.ChatMessage{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}
	hostID := hostIdentifier(req.Host)

	payload := map[string]any{
		"model":    req.Model,
		"messages": toOpenAIMessages(sanitizeMessages(messages)),
		"stream":   false,
	}
	applyParameters(payload, req.Parameters)

	body, err := json.Marshal(payload)
	if err != nil {
		return providers.ChatReply{}, err
	}
	logging.LogRequest("PARACHAT->LLM", hostID, req.Model, body)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Host.URL+"/v1/chat/completions", bytes.NewReader(body))
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
		return providers.ChatReply{}, fmt.Errorf("llama.cpp: /v1/chat/completions returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return providers.ChatReply{}, fmt.Errorf("llama.cpp: invalid chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return providers.ChatReply{}, errors.New("llama.cpp: chat response contained no choices")
	}

	msg := parsed.Choices[0].Message
	role := msg.Role
	if role == "" {
		role = "assistant"
	}
	return providers.ChatReply{
		Message:  providers.ChatMessage{Role: role, Content: msg.Content},
		Metadata: buildMetadata(parsed.Model, req.Model, parsed.Timings),
	}, nil
}

func buildMetadata(model, fallback string, t *timings) providers.ReplyMetadata {
	if model == "" {
		model = fallback
	}
	meta := providers.ReplyMetadata{
		Model:     model,
		CreatedAt: time.Now(),
	}
	if t != nil {
		meta.PromptEvalCount = t.PromptN
		meta.PromptEvalDuration = msToNs(t.PromptMS)
		meta.EvalCount = t.PredictedN
		meta.EvalDuration = msToNs(t.PredictedMS)
		meta.TotalDuration = meta.PromptEvalDuration + meta.EvalDuration
	}
	return meta
}

func msToNs(ms float64) int64 {
	return int64(ms * float64(time.Millisecond))
}

// Close is a no-op; the HTTP client holds no per-provider state.
func (p *Provider) Close() error {
	return nil
}

func parseModels(body []byte) ([]llamaModel, error) {
	var wrapped modelsResponse
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if len(wrapped.Models) > 0 {
			return wrapped.Models, nil
		}
		if len(wrapped.Data) > 0 {
			return wrapped.Data, nil
		}
	}

	var direct []llamaModel
	if err := json.Unmarshal(body, &direct); err == nil && len(direct) > 0 {
		return direct, nil
	}

	return nil, errors.New("llama.cpp: unrecognized models response")
}

func modelDisplayName(model llamaModel) string {
	for _, candidate := range []string{model.ID, model.Name, model.Model} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return ""
}

// statusField accepts either "loaded" or {"value":"loaded"}.
type statusField struct {
	Value string
}

func (s *statusField) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		s.Value = ""
		return nil
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(data, &s.Value)
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Value = obj.Value
	return nil
}

func modelStatusValue(model llamaModel) string {
	return strings.TrimSpace(model.Status.Value)
}

// fetchModels tries the router listing first and falls back to the OpenAI listing.
func (p *Provider) fetchModels(ctx context.Context, host appconfig.Host) ([]llamaModel, error) {
	var lastErr error
	for _, path := range []string{"/models", "/v1/models"} {
		models, err := p.fetchModelsFrom(ctx, host, path)
		if err == nil {
			return models, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (p *Provider) fetchModelsFrom(ctx context.Context, host appconfig.Host, path string) ([]llamaModel, error) {
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

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logging.LogRequest("LLM->PARACHAT", hostIdentifier(host), "", body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llama.cpp: %s returned %s", path, resp.Status)
	}
	return parseModels(body)
}

func (p *Provider) waitForModelLoaded(ctx context.Context, host appconfig.Host, model string) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		loaded, err := p.LoadedModels(ctx, host)
		if err != nil {
			return err
		}
		for _, name := range loaded {
			if strings.EqualFold(name, model) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("llama.cpp: model %s did not load before timeout", model)
		case <-ticker.C:
		}
	}
}

func isAlreadyLoadedError(statusCode int, body []byte) bool {
	if statusCode != http.StatusBadRequest {
		return false
	}
	if strings.Contains(strings.ToLower(string(body)), "already loaded") {
		return true
	}
	return false
}

func applyParameters(payload map[string]any, params appconfig.Parameters) {
	if params.TopK != nil {
		payload["top_k"] = *params.TopK
	}
	if params.TopP != nil {
		payload["top_p"] = *params.TopP
	}
	if params.MinP != nil {
		payload["min_p"] = *params.MinP
	}
	if params.Temperature != nil {
		payload["temperature"] = *params.Temperature
	}
	if params.RepeatPenalty != nil {
		payload["repeat_penalty"] = *params.RepeatPenalty
	}
	if params.PresencePenalty != nil {
		payload["presence_penalty"] = *params.PresencePenalty
	}
	if params.FrequencyPenalty != nil {
		payload["frequency_penalty"] = *params.FrequencyPenalty
	}
	if params.Seed != nil {
		payload["seed"] = *params.Seed
	}
	if params.NumPredict != nil {
		payload["n_predict"] = *params.NumPredict
	}
}

// sanitizeMessages trims content, defaults roles to user and drops empty
// non-assistant turns, which llama-server rejects.
func sanitizeMessages(messages []providers.ChatMessage) []providers.ChatMessage {
	sanitized := make([]providers.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		role := strings.TrimSpace(msg.Role)
		content := strings.TrimSpace(msg.Content)
		if role == "" {
			role = "user"
		}
		if role != "assistant" && content == "" {
			continue
		}
		sanitized = append(sanitized, providers.ChatMessage{Role: role, Content: content})
	}
	return sanitized
}

func toOpenAIMessages(messages []providers.ChatMessage) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openAIMessage{Role: msg.Role, Content: msg.Content})
	}
	return out
}

// hostIdentifier labels log lines with the host name, then its URL.
func hostIdentifier(host appconfig.Host) string {
	if name := strings.TrimSpace(host.Name); name != "" {
		return name
	}
	if url := strings.TrimSpace(host.URL); url != "" {
		return url
	}
	return "llama.cpp-host"
}
