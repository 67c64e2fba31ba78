package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the agent runtime, loaded
// once at startup (cmd/tarsyd/main.go) and threaded through every
// component's constructor, adapted from chain/MCP-server registries to
// the agent-runtime's own concerns.
type Config struct {
	Runtime    RuntimeConfig       `yaml:"runtime"`
	Events     EventConfig         `yaml:"events"`
	Flow       FlowConfig          `yaml:"flow"`
	Masking    MaskingConfig       `yaml:"masking"`
	LLM        []LLMProviderConfig `yaml:"llm_providers"`
	DefaultLLM string              `yaml:"default_llm_provider"`
}

// Stats is a small snapshot used by the health-check endpoint.
type Stats struct {
	LLMProviders int `json:"llm_providers"`
}

// Loaded bundles the parsed Config with derived lookups (e.g. the LLM
// registry) built once at startup.
type Loaded struct {
	Config *Config
	LLM    *LLMRegistry
}

// Stats returns a snapshot of the loaded configuration for the health
// endpoint.
func (l *Loaded) Stats() Stats {
	return Stats{LLMProviders: len(l.Config.LLM)}
}

// Default returns the built-in configuration, used when no config file
// is present (dev mode).
func Default() *Config {
	return &Config{
		Runtime: *DefaultRuntimeConfig(),
		Events:  *DefaultEventConfig(),
		Flow:    *DefaultFlowConfig(),
		Masking: *DefaultMaskingConfig(),
	}
}

// Initialize loads and validates configuration from configDir/config.yaml,
// falling back to built-in defaults if the file is absent.
func Initialize(_ context.Context, configDir string) (*Loaded, error) {
	cfg := Default()

	path := configDir + "/config.yaml"
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finishLoad(cfg)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigNotFound, path, err)
	}

	data = ExpandEnv(data)

	fileCfg := Default()
	if err := yaml.Unmarshal(data, fileCfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return finishLoad(fileCfg)
}

func finishLoad(cfg *Config) (*Loaded, error) {
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return &Loaded{
		Config: cfg,
		LLM:    NewLLMRegistry(cfg.LLM, cfg.DefaultLLM),
	}, nil
}
