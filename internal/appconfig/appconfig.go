// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// legacyConfigPath is checked when the default path does not exist.
	legacyConfigPath = "config.json"
	// defaultRequestTimeout is the default timeout for HTTP requests.
	defaultRequestTimeout = 600 * time.Second
	// defaultChunkDelay is the simulated per-chunk cost of the parallel text pass.
	defaultChunkDelay = 50 * time.Millisecond
	// defaultSampleInterval is how often the resource sampler reads process usage.
	defaultSampleInterval = 100 * time.Millisecond
)

// ExecutionMode names accepted by the defaultMode setting and the --mode flag.
const (
	ModeSequential = "sequential"
	ModeParallel   = "parallel"
)

var defaultRecommendedModels = []string{"llama3.2:3b", "qwen2.5:7b", "mistral:7b"}

// Config represents the top-level application configuration.
type Config struct {
	Hosts             []Host   `json:"hosts"`
	Debug             bool     `json:"debug"`
	TimeoutSeconds    int      `json:"timeout,omitempty"`
	LogFile           string   `json:"logFile,omitempty"`
	ChunkDelayMs      int      `json:"chunkDelayMs,omitempty"`
	SampleIntervalMs  int      `json:"sampleIntervalMs,omitempty"`
	ParallelismHint   int      `json:"parallelism,omitempty"`
	DefaultMode       string   `json:"defaultMode,omitempty"`
	ExportPath        string   `json:"export,omitempty"`
	RecommendedModels []string `json:"recommendedModels,omitempty"`
	ConfigPath        string   `json:"-"`
}

// Host represents a single host that can serve language models.
type Host struct {
	Name              string     `json:"name"`
	URL               string     `json:"url"`
	Type              string     `json:"type"`
	Models            []string   `json:"models"`
	SystemPrompt      string     `json:"systemprompt"`
	ParameterTemplate string     `json:"parameterTemplate,omitempty"`
	Parameters        Parameters `json:"parameters"`
}

// Parameters defines the sampling options forwarded to a model host.
type Parameters struct {
	TopK             *int     `json:"top_k,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MinP             *float64 `json:"min_p,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	RepeatPenalty    *float64 `json:"repeat_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	Seed             *int64   `json:"seed,omitempty"`
	NumPredict       *int     `json:"num_predict,omitempty"`
}

// RequestTimeout returns the timeout duration for HTTP requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ChunkDelay returns the simulated per-chunk processing cost.
// A negative value disables the delay entirely.
func (c Config) ChunkDelay() time.Duration {
	switch {
	case c.ChunkDelayMs < 0:
		return 0
	case c.ChunkDelayMs == 0:
		return defaultChunkDelay
	}
	return time.Duration(c.ChunkDelayMs) * time.Millisecond
}

// SampleInterval returns the resource sampler cadence.
func (c Config) SampleInterval() time.Duration {
	if c.SampleIntervalMs <= 0 {
		return defaultSampleInterval
	}
	return time.Duration(c.SampleIntervalMs) * time.Millisecond
}

// Parallelism returns the fan-out width for the parallel text pass.
func (c Config) Parallelism() int {
	if c.ParallelismHint <= 0 {
		return runtime.NumCPU()
	}
	return c.ParallelismHint
}

// Mode returns the normalized default execution mode.
func (c Config) Mode() string {
	if strings.EqualFold(strings.TrimSpace(c.DefaultMode), ModeParallel) {
		return ModeParallel
	}
	return ModeSequential
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "parachat.log"
}

// RecommendedModelList returns the configured recommended models or the built-in list.
func (c Config) RecommendedModelList() []string {
	if len(c.RecommendedModels) > 0 {
		return append([]string(nil), c.RecommendedModels...)
	}
	return append([]string(nil), defaultRecommendedModels...)
}

// FindHost returns the host with the given name, or the first host when name is empty.
func (c Config) FindHost(name string) (Host, error) {
	if len(c.Hosts) == 0 {
		return Host{}, errors.New("no hosts configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return c.Hosts[0], nil
	}
	for _, h := range c.Hosts {
		if strings.EqualFold(h.Name, name) {
			return h, nil
		}
	}
	return Host{}, fmt.Errorf("host %q not found in configuration", name)
}

// DefaultModel returns the first model configured for the host.
func (h Host) DefaultModel() string {
	if len(h.Models) == 0 {
		return ""
	}
	return h.Models[0]
}

// Load reads the application configuration from the specified path, with fallback to a legacy path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err == nil {
		if len(config.Hosts) == 0 {
			return Config{}, errors.New("config must contain at least one host")
		}
		config.ConfigPath = path
		return config, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		if path == DefaultConfigPath {
			config, legacyErr := loadFromPath(legacyConfigPath)
			if legacyErr == nil {
				config.ConfigPath = legacyConfigPath
				return config, nil
			}
			if errors.Is(legacyErr, os.ErrNotExist) {
				return Config{}, fmt.Errorf("no configuration file found (searched %q and %q)", DefaultConfigPath, legacyConfigPath)
			}
			return Config{}, fmt.Errorf("could not read config file %q: %w", legacyConfigPath, legacyErr)
		}
		return Config{}, fmt.Errorf("no configuration file found at %q", path)
	}

	return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
}

// LoadFile validates and decodes the file at path. Unlike Load it accepts a
// config without hosts, for commands that never contact a backend.
func LoadFile(path string) (Config, error) {
	config, err := loadFromPath(path)
	if err != nil {
		return Config{}, err
	}
	config.ConfigPath = path
	return config, nil
}

// loadFromPath validates and decodes the configuration at path.
func loadFromPath(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := Validate(data); err != nil {
		return Config{}, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	if err := Normalize(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Normalize fills defaults and applies parameter templates in place.
func Normalize(config *Config) error {
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}
	return ApplyParameterTemplates(config)
}
