package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/config"
)

func TestCompileBuiltinPatternsCompilesEveryPattern(t *testing.T) {
	svc := NewService(config.MaskingConfig{Enabled: true, PatternGroup: "all"})

	assert.Equal(t, len(getBuiltin().patterns), len(svc.patterns))
	for name, cp := range svc.patterns {
		assert.NotNil(t, cp.Regex, "pattern %s should have compiled regex", name)
		assert.NotEmpty(t, cp.Replacement, "pattern %s should have replacement", name)
	}
}

func TestResolveGroupExpandsPatternNamesAndCodeMaskers(t *testing.T) {
	svc := NewService(config.MaskingConfig{Enabled: true, PatternGroup: "kubernetes"})

	resolved := svc.resolveGroup("kubernetes")
	assert.Contains(t, resolved.codeMaskerNames, "kubernetes_secret")
	assert.NotEmpty(t, resolved.regexPatterns)
}

func TestResolveGroupUnknownNameReturnsEmpty(t *testing.T) {
	svc := NewService(config.MaskingConfig{Enabled: true, PatternGroup: "security"})

	resolved := svc.resolveGroup("does-not-exist")
	assert.Empty(t, resolved.codeMaskerNames)
	assert.Empty(t, resolved.regexPatterns)
}

func TestResolveGroupDeduplicatesAcrossOverlappingNames(t *testing.T) {
	svc := NewService(config.MaskingConfig{Enabled: true, PatternGroup: "all"})

	resolved := svc.resolveGroup("all")
	seen := make(map[string]bool)
	for _, cp := range resolved.regexPatterns {
		assert.False(t, seen[cp.Name], "pattern %s should appear at most once", cp.Name)
		seen[cp.Name] = true
	}
}

func TestGetBuiltinIsASingleton(t *testing.T) {
	a := getBuiltin()
	b := getBuiltin()
	assert.Same(t, a, b)
}
