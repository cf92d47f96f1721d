// internal/providerfactory/factory.go
package providerfactory

import (
	"fmt"
	"strings"

	"github.com/mwiater/parachat/internal/appconfig"
	"github.com/mwiater/parachat/internal/logging"
	"github.com/mwiater/parachat/internal/providers"
	"github.com/mwiater/parachat/internal/providers/llamacpp"
	"github.com/mwiater/parachat/internal/providers/ollama"
)

const (
	typeOllama   = "ollama"
	typeLlamaCpp = "llama.cpp"
)

// normalizeHostType maps the accepted spellings onto a canonical backend type.
// An empty type selects llama.cpp.
func normalizeHostType(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ollama":
		return typeOllama, nil
	case "", "llama.cpp", "llamacpp":
		return typeLlamaCpp, nil
	default:
		return "", fmt.Errorf("unsupported host type %q", raw)
	}
}

// collectHostTypes returns the distinct backend types used by the configured hosts.
func collectHostTypes(cfg *appconfig.Config) (map[string]bool, error) {
	types := make(map[string]bool)
	for _, host := range cfg.Hosts {
		t, err := normalizeHostType(host.Type)
		if err != nil {
			return nil, fmt.Errorf("host %q: %w", host.Name, err)
		}
		types[t] = true
	}
	return types, nil
}

// ValidateHosts reports the first host whose type no provider can serve.
func ValidateHosts(cfg *appconfig.Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config provided to provider factory")
	}
	_, err := collectHostTypes(cfg)
	return err
}

// NewChatProvider selects the chat provider that speaks the given host's API.
func NewChatProvider(cfg *appconfig.Config, host appconfig.Host) (providers.ChatProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config provided to provider factory")
	}

	hostType, err := normalizeHostType(host.Type)
	if err != nil {
		return nil, err
	}

	var provider providers.ChatProvider
	switch hostType {
	case typeOllama:
		provider = ollama.New(cfg)
	default:
		provider = llamacpp.New(cfg)
	}
	logging.LogDebug("provider ready: host=%s type=%s", host.Name, hostType)
	return provider, nil
}

// NewBackend builds a single-shot inference backend for host.
func NewBackend(cfg *appconfig.Config, host appconfig.Host) (*providers.Backend, error) {
	provider, err := NewChatProvider(cfg, host)
	if err != nil {
		return nil, err
	}
	return providers.NewBackend(provider, host), nil
}
