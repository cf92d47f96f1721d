// internal/session/errors.go
package session

import (
	"fmt"

	"github.com/mwiater/parachat/internal/metrics"
)

// ErrorKind classifies a failed session.
type ErrorKind string

const (
	// KindBackend covers transport, timeout, status and decode failures of the backend call.
	KindBackend ErrorKind = "backend"
	// KindWorker is a chunk worker failure during the parallel pass.
	KindWorker ErrorKind = "worker"
	// KindCancelled means the caller's context ended before the session finished.
	KindCancelled ErrorKind = "cancelled"
)

// InferenceError is the single error type returned by a failed session. The
// metrics gathered up to the failure are always attached.
type InferenceError struct {
	Kind      ErrorKind
	SessionID string
	Mode      metrics.ExecutionMode
	Model     string
	Message   string
	Err       error
	Metrics   metrics.PerformanceMetrics
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s inference with %s failed (%s): %s", e.Mode, e.Model, e.Kind, e.Message)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
