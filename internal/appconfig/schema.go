// internal/appconfig/schema.go
package appconfig

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema describes the accepted shape of config.json. Unknown keys are
// allowed so older files keep loading.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "hosts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "url"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "url": {"type": "string", "pattern": "^https?://"},
          "type": {"type": "string", "enum": ["", "ollama", "llama.cpp", "llamacpp"]},
          "models": {"type": "array", "items": {"type": "string"}},
          "systemprompt": {"type": "string"},
          "parameterTemplate": {"type": "string"},
          "parameters": {"type": "object"}
        }
      }
    },
    "debug": {"type": "boolean"},
    "timeout": {"type": "integer", "minimum": 0},
    "logFile": {"type": "string"},
    "chunkDelayMs": {"type": "integer"},
    "sampleIntervalMs": {"type": "integer", "minimum": 0},
    "parallelism": {"type": "integer", "minimum": 0},
    "defaultMode": {"type": "string", "enum": ["", "sequential", "parallel"]},
    "export": {"type": "string"},
    "recommendedModels": {"type": "array", "items": {"type": "string"}}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(configSchema)

// Validate checks raw config JSON against the configuration schema and
// reports every violation in a single error.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("config is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("config failed validation: %s", strings.Join(problems, "; "))
}
