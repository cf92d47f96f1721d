// internal/appconfig/parameter_templates.go
package appconfig

import (
	"strings"
)

// ProfileName identifies a parameter preset/profile.
type ProfileName string

const (
	ProfileGenericChat ProfileName = "generic"
	ProfilePrecise     ProfileName = "precise"
	ProfileCreative    ProfileName = "creative"
)

// ParamsForProfile selects a parameter profile by name.
// Behavior:
//   - empty string => Generic Chat (default)
//   - unknown string => Generic Chat (default)
func ParamsForProfile(name string) Parameters {
	switch ProfileName(normalizeProfileName(name)) {
	case ProfilePrecise:
		return DefaultPreciseParams()
	case ProfileCreative:
		return DefaultCreativeParams()
	default:
		return DefaultGenericChatParams()
	}
}

// DefaultGenericChatParams is the profile used for everyday chat.
func DefaultGenericChatParams() Parameters {
	return Parameters{
		Temperature:   ptrFloat(0.8),
		TopP:          ptrFloat(1.0),
		TopK:          ptrInt(0),
		MinP:          ptrFloat(0.08),
		RepeatPenalty: ptrFloat(1.1),
		Seed:          ptrInt64(-1),
		NumPredict:    ptrInt(1024),
	}
}

// DefaultPreciseParams keeps output short and repeatable, which makes
// timing comparisons between runs easier to read.
func DefaultPreciseParams() Parameters {
	return Parameters{
		Temperature:   ptrFloat(0.1),
		TopP:          ptrFloat(0.95),
		MinP:          ptrFloat(0.1),
		RepeatPenalty: ptrFloat(1.0),
		Seed:          ptrInt64(42),
		NumPredict:    ptrInt(512),
	}
}

// DefaultCreativeParams trades determinism for variety.
func DefaultCreativeParams() Parameters {
	return Parameters{
		Temperature:      ptrFloat(1.5),
		TopP:             ptrFloat(1.0),
		TopK:             ptrInt(0),
		MinP:             ptrFloat(0.15),
		RepeatPenalty:    ptrFloat(1.05),
		PresencePenalty:  ptrFloat(0.5),
		FrequencyPenalty: ptrFloat(0.2),
		Seed:             ptrInt64(-1),
		NumPredict:       ptrInt(2048),
	}
}

// ApplyParameterTemplates merges each host's explicit parameters over its
// named template. Hosts without a template keep their parameters untouched.
func ApplyParameterTemplates(config *Config) error {
	for i := range config.Hosts {
		host := &config.Hosts[i]
		if strings.TrimSpace(host.ParameterTemplate) == "" {
			continue
		}
		host.Parameters = mergeParams(ParamsForProfile(host.ParameterTemplate), host.Parameters)
	}
	return nil
}

func mergeParams(base Parameters, override Parameters) Parameters {
	if override.Temperature != nil {
		base.Temperature = override.Temperature
	}
	if override.TopK != nil {
		base.TopK = override.TopK
	}
	if override.TopP != nil {
		base.TopP = override.TopP
	}
	if override.MinP != nil {
		base.MinP = override.MinP
	}
	if override.RepeatPenalty != nil {
		base.RepeatPenalty = override.RepeatPenalty
	}
	if override.PresencePenalty != nil {
		base.PresencePenalty = override.PresencePenalty
	}
	if override.FrequencyPenalty != nil {
		base.FrequencyPenalty = override.FrequencyPenalty
	}
	if override.Seed != nil {
		base.Seed = override.Seed
	}
	if override.NumPredict != nil {
		base.NumPredict = override.NumPredict
	}
	return base
}

func normalizeProfileName(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	// allow a few friendly aliases
	switch s {
	case "", "default", "chat", "generic_chat", "generic-chat":
		return string(ProfileGenericChat)
	case "precise", "accuracy", "fact", "fact-checker":
		return string(ProfilePrecise)
	case "creative_writing", "creative-writing", "writer":
		return string(ProfileCreative)
	default:
		return s
	}
}

// Pointer helpers (keeps structs clean + preserves unset vs explicitly set).
func ptrInt(v int) *int           { return &v }
func ptrInt64(v int64) *int64     { return &v }
func ptrFloat(v float64) *float64 { return &v }
