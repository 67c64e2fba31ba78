// Package masking redacts credential-shaped text (API keys, tokens,
// passwords, certificates, Kubernetes Secret data) before an agent's
// memories and buffered event payloads are persisted or handed to the
// LLM collaborator.
package masking

import (
	"log/slog"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/config"
)

// Service applies data masking to agent memories and event payloads.
// Created once at application startup (singleton). Thread-safe and
// stateless aside from its compiled patterns.
type Service struct {
	cfg         config.MaskingConfig
	patterns    map[string]*CompiledPattern
	codeMaskers map[string]Masker
}

// NewService builds a masking Service from cfg, compiling every builtin
// pattern eagerly. Invalid patterns are logged and skipped.
func NewService(cfg config.MaskingConfig) *Service {
	s := &Service{
		cfg:         cfg,
		patterns:    make(map[string]*CompiledPattern),
		codeMaskers: make(map[string]Masker),
	}

	s.compileBuiltinPatterns()
	s.registerMasker(&KubernetesSecretMasker{})

	slog.Info("masking service initialized",
		"compiled_patterns", len(s.patterns),
		"code_maskers", len(s.codeMaskers),
		"enabled", cfg.Enabled,
		"pattern_group", cfg.PatternGroup)

	return s
}

// Mask redacts text using the service's configured pattern group.
// Disabled or unknown pattern groups pass text through unchanged;
// compiling and applying patterns cannot itself fail.
func (s *Service) Mask(text string) string {
	if !s.cfg.Enabled || text == "" {
		return text
	}

	resolved := s.resolveGroup(s.cfg.PatternGroup)
	if len(resolved.codeMaskerNames) == 0 && len(resolved.regexPatterns) == 0 {
		return text
	}

	return s.applyMasking(text, resolved)
}

// applyMasking applies code-based maskers (structural awareness) then
// regex patterns (general sweep) to content.
func (s *Service) applyMasking(content string, resolved *resolvedPatterns) string {
	masked := content

	for _, name := range resolved.codeMaskerNames {
		masker, ok := s.codeMaskers[name]
		if !ok {
			continue
		}
		if masker.AppliesTo(masked) {
			masked = masker.Mask(masked)
		}
	}

	for _, pattern := range resolved.regexPatterns {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}

	return masked
}

func (s *Service) registerMasker(m Masker) {
	s.codeMaskers[m.Name()] = m
}
