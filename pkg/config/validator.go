package config

import "fmt"

// Validate checks structural invariants of a loaded Config: small,
// explicit checks that return a ValidationError naming the offending
// component.
func Validate(cfg *Config) error {
	if cfg.Runtime.WorkQueueDrainTimeout <= 0 {
		return &ValidationError{Component: "runtime", Field: "work_queue_drain_timeout", Err: ErrInvalidValue}
	}
	if cfg.Events.MaxBufferSize <= 0 {
		return &ValidationError{Component: "events", Field: "max_buffer_size", Err: ErrInvalidValue}
	}
	if cfg.Events.PollIntervalSlow < cfg.Events.PollIntervalFast {
		return &ValidationError{Component: "events", Field: "poll_interval_slow", Err: fmt.Errorf("must be >= poll_interval_fast")}
	}
	if cfg.Flow.MaxSearchIterations <= 0 {
		return &ValidationError{Component: "flow", Field: "max_search_iterations", Err: ErrInvalidValue}
	}

	seen := make(map[string]bool, len(cfg.LLM))
	for _, p := range cfg.LLM {
		if p.Name == "" {
			return &ValidationError{Component: "llm_provider", Field: "name", Err: ErrMissingRequiredField}
		}
		if seen[p.Name] {
			return &ValidationError{Component: "llm_provider", ID: p.Name, Err: fmt.Errorf("duplicate provider name")}
		}
		seen[p.Name] = true
	}
	if cfg.DefaultLLM != "" && !seen[cfg.DefaultLLM] {
		return &ValidationError{Component: "llm_provider", ID: cfg.DefaultLLM, Err: ErrLLMProviderNotFound}
	}

	return nil
}
