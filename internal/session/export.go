// internal/session/export.go
package session

import (
	"sync"

	"github.com/mwiater/parachat/internal/logging"
	"github.com/mwiater/parachat/internal/util"
)

// Exporter appends each observed ChatMessage to a JSON-lines file.
type Exporter struct {
	path string
	mu   sync.Mutex
	err  error
}

// NewExporter returns an exporter writing to path.
func NewExporter(path string) *Exporter {
	return &Exporter{path: path}
}

// Observe writes msg as one line. It has the OnResult signature; write
// failures are logged and kept for Err.
func (e *Exporter) Observe(msg ChatMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := util.AppendJSONLine(e.path, msg); err != nil {
		logging.LogEvent("[EXPORT] failed to write %s: %v", e.path, err)
		if e.err == nil {
			e.err = err
		}
	}
}

// Err returns the first write failure, if any.
func (e *Exporter) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}
