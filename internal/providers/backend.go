// internal/providers/backend.go
package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/mwiater/parachat/internal/appconfig"
	"github.com/mwiater/parachat/internal/logging"
)

// ErrEmptyResponse is returned when a host completes a request without producing any text.
var ErrEmptyResponse = errors.New("backend returned an empty response")

// Backend adapts a ChatProvider bound to one host into a single-shot,
// non-streaming inference call.
type Backend struct {
	Provider ChatProvider
	Host     appconfig.Host
}

// NewBackend binds provider to host.
func NewBackend(provider ChatProvider, host appconfig.Host) *Backend {
	return &Backend{Provider: provider, Host: host}
}

// Infer sends prompt to model with streaming disabled and returns the full
// assistant text. Transport, status and decode failures are returned as-is.
func (b *Backend) Infer(ctx context.Context, prompt, model string) (string, error) {
	if b.Provider == nil {
		return "", errors.New("backend has no provider")
	}
	reply, err := b.Provider.Chat(ctx, ChatRequest{
		Host:         b.Host,
		Model:        model,
		History:      []ChatMessage{{Role: "user", Content: prompt}},
		SystemPrompt: b.Host.SystemPrompt,
		Parameters:   b.Host.Parameters,
	})
	if err != nil {
		return "", err
	}
	if rate, ok := reply.Metadata.EvalRate(); ok {
		logging.LogDebug("host %s reported %d tokens at %.1f tok/s for %s", b.Host.Name, reply.Metadata.EvalCount, rate, model)
	}
	if strings.TrimSpace(reply.Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return reply.Message.Content, nil
}
