package masking

import (
	"log/slog"
	"regexp"
	"slices"
	"sync"
)

// MaskingPattern is one named regex redaction rule.
type MaskingPattern struct {
	Pattern     string
	Replacement string
	Description string
}

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// builtinSet is the full set of builtin masking patterns, pattern groups,
// and registered code-masker names.
type builtinSet struct {
	patterns      map[string]MaskingPattern
	patternGroups map[string][]string
	codeMaskers   []string
}

var (
	builtinOnce sync.Once
	builtin     *builtinSet
)

// getBuiltin returns the singleton builtin pattern set (thread-safe,
// lazy-initialized).
func getBuiltin() *builtinSet {
	builtinOnce.Do(func() {
		builtin = &builtinSet{
			patterns:      initBuiltinMaskingPatterns(),
			patternGroups: initBuiltinPatternGroups(),
			codeMaskers:   initBuiltinCodeMaskers(),
		}
	})
	return builtin
}

func initBuiltinMaskingPatterns() map[string]MaskingPattern {
	return map[string]MaskingPattern{
		"api_key": {
			Pattern:     `(?i)(?:api[_-]?key|apikey|key)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-]{20,})["\']?`,
			Replacement: `"api_key": "[MASKED_API_KEY]"`,
			Description: "API keys",
		},
		"password": {
			Pattern:     `(?i)(?:password|pwd|pass)["\']?\s*[:=]\s*["\']?([^"\'\s\n]{6,})["\']?`,
			Replacement: `"password": "[MASKED_PASSWORD]"`,
			Description: "Passwords",
		},
		"certificate": {
			Pattern:     `(?s)-----BEGIN [A-Z ]+-----.*?-----END [A-Z ]+-----`,
			Replacement: `[MASKED_CERTIFICATE]`,
			Description: "SSL/TLS certificates",
		},
		"certificate_authority_data": {
			Pattern:     `(?i)certificate-authority-data:\s*([A-Za-z0-9+/]{20,}={0,2})`,
			Replacement: `certificate-authority-data: [MASKED_CA_CERTIFICATE]`,
			Description: "K8s CA data",
		},
		"token": {
			Pattern:     `(?i)(?:token|bearer|jwt)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-\.]{20,})["\']?`,
			Replacement: `"token": "[MASKED_TOKEN]"`,
			Description: "Access tokens",
		},
		"email": {
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`,
			Replacement: `[MASKED_EMAIL]`,
			Description: "Email addresses",
		},
		"ssh_key": {
			Pattern:     `ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`,
			Replacement: `[MASKED_SSH_KEY]`,
			Description: "SSH public keys",
		},
		"private_key": {
			Pattern:     `(?i)(?:private[_-]?key)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-\.]{20,})["\']?`,
			Replacement: `"private_key": "[MASKED_PRIVATE_KEY]"`,
			Description: "Private keys",
		},
		"secret_key": {
			Pattern:     `(?i)(?:secret[_-]?key)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-\.]{20,})["\']?`,
			Replacement: `"secret_key": "[MASKED_SECRET_KEY]"`,
			Description: "Secret keys",
		},
		"aws_access_key": {
			Pattern:     `(?i)(?:aws[_-]?access[_-]?key[_-]?id)["\']?\s*[:=]\s*["\']?(AKIA[A-Z0-9]{16})["\']?`,
			Replacement: `"aws_access_key_id": "[MASKED_AWS_KEY]"`,
			Description: "AWS access keys",
		},
		"aws_secret_key": {
			Pattern:     `(?i)(?:aws[_-]?secret[_-]?access[_-]?key)["\']?\s*[:=]\s*["\']?([A-Za-z0-9/+=]{40})["\']?`,
			Replacement: `"aws_secret_access_key": "[MASKED_AWS_SECRET]"`,
			Description: "AWS secret keys",
		},
		"github_token": {
			Pattern:     `(?i)(?:github[_-]?token|gh[ps]_[A-Za-z0-9_]{36,255})`,
			Replacement: `[MASKED_GITHUB_TOKEN]`,
			Description: "GitHub tokens",
		},
		"slack_token": {
			Pattern:     `(?i)xox[baprs]-[A-Za-z0-9-]{10,72}`,
			Replacement: `[MASKED_SLACK_TOKEN]`,
			Description: "Slack tokens",
		},
	}
}

// initBuiltinPatternGroups returns predefined groups of masking patterns.
// Group members can reference either a MaskingPattern name or a
// code-masker name (e.g. "kubernetes_secret", implemented in
// kubernetes_secret.go).
func initBuiltinPatternGroups() map[string][]string {
	return map[string][]string{
		"basic":      {"api_key", "password"},
		"secrets":    {"api_key", "password", "token", "private_key", "secret_key"},
		"security":   {"api_key", "password", "token", "certificate", "certificate_authority_data", "email", "ssh_key", "kubernetes_secret"},
		"kubernetes": {"kubernetes_secret", "api_key", "password", "certificate_authority_data"},
		"cloud":      {"aws_access_key", "aws_secret_key", "api_key", "token"},
		"all":        {"api_key", "password", "certificate", "certificate_authority_data", "email", "token", "ssh_key", "private_key", "secret_key", "aws_access_key", "aws_secret_key", "github_token", "slack_token", "kubernetes_secret"},
	}
}

// initBuiltinCodeMaskers returns the names of code-based maskers available
// to pattern groups, implemented as Masker values registered on a Service.
func initBuiltinCodeMaskers() []string {
	return []string{"kubernetes_secret"}
}

// resolvedPatterns holds the resolved set of maskers and patterns for one
// masking operation.
type resolvedPatterns struct {
	codeMaskerNames []string
	regexPatterns   []*CompiledPattern
}

// compileBuiltinPatterns compiles every builtin regex pattern. Invalid
// patterns are logged and skipped rather than failing service
// construction.
func (s *Service) compileBuiltinPatterns() {
	for name, pattern := range getBuiltin().patterns {
		compiled, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			slog.Error("failed to compile builtin masking pattern, skipping", "pattern", name, "error", err)
			continue
		}
		s.patterns[name] = &CompiledPattern{
			Name:        name,
			Regex:       compiled,
			Replacement: pattern.Replacement,
			Description: pattern.Description,
		}
	}
}

// resolveGroup expands a pattern-group name into a deduplicated
// resolvedPatterns.
func (s *Service) resolveGroup(groupName string) *resolvedPatterns {
	seen := make(map[string]bool)
	resolved := &resolvedPatterns{}

	groupPatterns, ok := getBuiltin().patternGroups[groupName]
	if !ok {
		return resolved
	}

	for _, name := range groupPatterns {
		if seen[name] {
			continue
		}
		seen[name] = true
		s.addToResolved(resolved, name)
	}

	return resolved
}

func (s *Service) addToResolved(resolved *resolvedPatterns, name string) {
	if slices.Contains(getBuiltin().codeMaskers, name) {
		resolved.codeMaskerNames = append(resolved.codeMaskerNames, name)
		return
	}
	if cp, ok := s.patterns[name]; ok {
		resolved.regexPatterns = append(resolved.regexPatterns, cp)
	}
}
