package config

// MaskingConfig controls redaction of agent memories and buffered event
// payloads before they are persisted or handed to the LLM collaborator.
type MaskingConfig struct {
	// Enabled turns masking on or off entirely.
	Enabled bool `yaml:"enabled"`

	// PatternGroup names the builtin pattern group applied to every
	// memory/event payload (see pkg/masking's builtin groups: basic,
	// secrets, security, kubernetes, cloud, all).
	PatternGroup string `yaml:"pattern_group"`
}

// DefaultMaskingConfig returns the built-in masking defaults: enabled,
// using the "security" group.
func DefaultMaskingConfig() *MaskingConfig {
	return &MaskingConfig{
		Enabled:      true,
		PatternGroup: "security",
	}
}
