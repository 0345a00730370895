package openapi

import "strings"

// DefaultSessionPath is where the snapshot operation is documented.
const DefaultSessionPath = "/sessions/{domain}/{session}"

type generatorConfig struct {
	title       string
	version     string
	description string
	sessionPath string
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		title:       "Wizard Session",
		version:     "1.0.0",
		description: "Persisted appraisal wizard session document.",
		sessionPath: DefaultSessionPath,
	}
}

// GeneratorOption configures the generator.
type GeneratorOption func(*generatorConfig)

// WithInfo sets the document info block. Empty values keep the defaults.
func WithInfo(title, version, description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if title = strings.TrimSpace(title); title != "" {
			cfg.title = title
		}
		if version = strings.TrimSpace(version); version != "" {
			cfg.version = version
		}
		if description = strings.TrimSpace(description); description != "" {
			cfg.description = description
		}
	}
}

// WithSessionPath changes where the snapshot operation is documented. The
// path must contain the {domain} and {session} placeholders.
func WithSessionPath(path string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if path = strings.TrimSpace(path); path != "" {
			cfg.sessionPath = path
		}
	}
}
