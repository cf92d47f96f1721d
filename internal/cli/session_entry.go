// internal/cli/session_entry.go
package parachat

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwiater/parachat/internal/appconfig"
	"github.com/mwiater/parachat/internal/logging"
	"github.com/mwiater/parachat/internal/metrics"
	"github.com/mwiater/parachat/internal/providerfactory"
	"github.com/mwiater/parachat/internal/providers"
	"github.com/mwiater/parachat/internal/session"
	"github.com/mwiater/parachat/internal/textproc"
)

// target is the resolved host, model and backend for one command invocation.
type target struct {
	host    appconfig.Host
	model   string
	backend *providers.Backend
}

// resolveTarget picks the host by name (first host when empty) and the model
// (the host's first model when empty), and builds its backend.
func resolveTarget(cfg *appconfig.Config, hostName, model string) (target, error) {
	host, err := cfg.FindHost(hostName)
	if err != nil {
		return target{}, err
	}
	if strings.TrimSpace(model) == "" {
		model = host.DefaultModel()
	}
	if model == "" {
		return target{}, fmt.Errorf("no model given and host %q has no models configured", host.Name)
	}
	backend, err := providerfactory.NewBackend(cfg, host)
	if err != nil {
		return target{}, err
	}
	return target{host: host, model: model, backend: backend}, nil
}

// warmUp loads the model before measuring so load time is not attributed to the first session.
func (t target) warmUp(ctx context.Context) {
	if err := t.backend.Provider.EnsureModelReady(ctx, t.host, t.model); err != nil {
		logging.LogEvent("warm-up of %s on %s failed: %v", t.model, t.host.Name, err)
	}
}

// newSession wires a session for t from cfg, attaching the JSON-lines exporter when configured.
func newSession(cfg *appconfig.Config, t target) (*session.Session, *session.Exporter) {
	s := session.New(t.backend,
		session.WithOrchestrator(textproc.NewOrchestrator(cfg.Parallelism(), cfg.ChunkDelay())),
		session.WithSampleInterval(cfg.SampleInterval()),
	)
	var exporter *session.Exporter
	if cfg.ExportPath != "" {
		exporter = session.NewExporter(cfg.ExportPath)
		s.OnResult(exporter.Observe)
	}
	return s, exporter
}

// resolveMode prefers an explicit --mode value over the configured default.
func resolveMode(cfg *appconfig.Config, flagValue string) (metrics.ExecutionMode, error) {
	if strings.TrimSpace(flagValue) != "" {
		return metrics.ParseExecutionMode(flagValue)
	}
	return metrics.ParseExecutionMode(cfg.Mode())
}
