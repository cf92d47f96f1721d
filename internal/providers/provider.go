// internal/providers/provider.go

// Package providers is the seam between parachat and the model hosts it
// measures. Each host type ships a ChatProvider; Backend narrows one to the
// single-shot inference call the session layer times.
package providers

import (
	"context"
	"time"

	"github.com/mwiater/parachat/internal/appconfig"
)

// ChatMessage is one turn sent to or received from a host.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReplyMetadata carries what a host reports about a completed reply.
// Durations are nanoseconds as sent by the host; zero means not reported.
type ReplyMetadata struct {
	Model              string
	CreatedAt          time.Time
	TotalDuration      int64
	LoadDuration       int64
	PromptEvalCount    int
	PromptEvalDuration int64
	EvalCount          int
	EvalDuration       int64
}

// EvalRate returns the host's own generation rate in tokens per second.
func (m ReplyMetadata) EvalRate() (float64, bool) {
	if m.EvalCount <= 0 || m.EvalDuration <= 0 {
		return 0, false
	}
	return float64(m.EvalCount) / time.Duration(m.EvalDuration).Seconds(), true
}

// ChatRequest is a single non-streaming chat request against one host and model.
type ChatRequest struct {
	Host         appconfig.Host
	Model        string
	History      []ChatMessage
	SystemPrompt string
	Parameters   appconfig.Parameters
}

// ChatReply is the complete assistant turn and its host metadata.
type ChatReply struct {
	Message  ChatMessage
	Metadata ReplyMetadata
}

// ChatProvider talks to one kind of model host.
type ChatProvider interface {
	AvailableModels(ctx context.Context, host appconfig.Host) ([]string, error)
	LoadedModels(ctx context.Context, host appconfig.Host) ([]string, error)
	// EnsureModelReady loads model on host if it is not resident yet.
	EnsureModelReady(ctx context.Context, host appconfig.Host, model string) error
	// Chat sends req with streaming disabled and waits for the whole reply.
	Chat(ctx context.Context, req ChatRequest) (ChatReply, error)
	Close() error
}
