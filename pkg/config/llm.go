package config

// LLMProviderConfig describes one named LLM backend the Flow Engine may
// call into, trimmed to the fields the agent runtime core consumes
// directly; prompt templates and provider-specific knobs live with the
// LLM collaborator implementation, not with the runtime core.
type LLMProviderConfig struct {
	Name        string  `yaml:"name" validate:"required"`
	Backend     string  `yaml:"backend" validate:"required"` // e.g. "grpc"
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// LLMRegistry resolves a provider name to its configuration. Built once
// at startup from the loaded Config.
type LLMRegistry struct {
	providers map[string]*LLMProviderConfig
	defaultID string
}

// NewLLMRegistry builds a registry from a list of provider configs.
func NewLLMRegistry(providers []LLMProviderConfig, defaultName string) *LLMRegistry {
	r := &LLMRegistry{providers: make(map[string]*LLMProviderConfig, len(providers))}
	for i := range providers {
		p := providers[i]
		r.providers[p.Name] = &p
	}
	r.defaultID = defaultName
	return r
}

// Get resolves a provider by name. An empty name resolves the registry's
// configured default.
func (r *LLMRegistry) Get(name string) (*LLMProviderConfig, error) {
	if name == "" {
		name = r.defaultID
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, &ValidationError{Component: "llm_provider", ID: name, Err: ErrLLMProviderNotFound}
	}
	return p, nil
}
