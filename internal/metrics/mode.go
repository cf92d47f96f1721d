// internal/metrics/mode.go
package metrics

import (
	"fmt"
	"strings"
)

// ExecutionMode selects how an inference session post-processes the backend response.
type ExecutionMode int

const (
	// Sequential returns the backend response unchanged.
	Sequential ExecutionMode = iota
	// Parallel pipes the backend response through the chunked text analysis.
	Parallel
)

func (m ExecutionMode) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Parallel:
		return "parallel"
	default:
		return fmt.Sprintf("ExecutionMode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name.
func (m ExecutionMode) MarshalText() ([]byte, error) {
	switch m {
	case Sequential, Parallel:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("metrics: unknown execution mode %d", int(m))
	}
}

// UnmarshalText decodes a mode name.
func (m *ExecutionMode) UnmarshalText(text []byte) error {
	parsed, err := ParseExecutionMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseExecutionMode accepts "sequential" or "parallel" in any case.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sequential", "seq":
		return Sequential, nil
	case "parallel", "par":
		return Parallel, nil
	default:
		return Sequential, fmt.Errorf("metrics: unknown execution mode %q", s)
	}
}
