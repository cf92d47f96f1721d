// internal/session/message.go
package session

import (
	"time"

	"github.com/mwiater/parachat/internal/metrics"
)

// ChatMessage is the record of one completed session, successful or not.
type ChatMessage struct {
	SessionID string                      `json:"session_id"`
	CreatedAt time.Time                   `json:"created_at"`
	Model     string                      `json:"model"`
	Prompt    string                      `json:"prompt"`
	Response  string                      `json:"response,omitempty"`
	Error     string                      `json:"error,omitempty"`
	Mode      *metrics.ExecutionMode      `json:"execution_mode,omitempty"`
	Metrics   *metrics.PerformanceMetrics `json:"metrics,omitempty"`
}

// Failed reports whether the session ended in an error.
func (m ChatMessage) Failed() bool {
	return m.Error != ""
}
