package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/config"
)

func TestNewServiceCompilesBuiltinPatternsAndRegistersCodeMaskers(t *testing.T) {
	svc := NewService(config.MaskingConfig{Enabled: true, PatternGroup: "security"})

	assert.NotEmpty(t, svc.patterns)
	assert.Contains(t, svc.codeMaskers, "kubernetes_secret")
}

func TestMaskEmptyContent(t *testing.T) {
	svc := NewService(config.MaskingConfig{Enabled: true, PatternGroup: "security"})
	assert.Empty(t, svc.Mask(""))
}

func TestMaskDisabledPassesThrough(t *testing.T) {
	svc := NewService(config.MaskingConfig{Enabled: false, PatternGroup: "security"})
	content := `api_key: "sk-FAKE-NOT-REAL-API-KEY-VALUE"`
	assert.Equal(t, content, svc.Mask(content))
}

func TestMaskUnknownGroupPassesThrough(t *testing.T) {
	svc := NewService(config.MaskingConfig{Enabled: true, PatternGroup: "does-not-exist"})
	content := `api_key: "sk-FAKE-NOT-REAL-API-KEY-VALUE"`
	assert.Equal(t, content, svc.Mask(content))
}

func TestMaskRedactsAPIKey(t *testing.T) {
	svc := NewService(config.MaskingConfig{Enabled: true, PatternGroup: "basic"})
	content := `api_key: "abcdefghijklmnopqrstuvwxyz123456"`
	masked := svc.Mask(content)
	assert.Contains(t, masked, "[MASKED_API_KEY]")
	assert.NotContains(t, masked, "abcdefghijklmnopqrstuvwxyz123456")
}

func TestMaskRedactsPassword(t *testing.T) {
	svc := NewService(config.MaskingConfig{Enabled: true, PatternGroup: "basic"})
	content := `password: "hunter22"`
	masked := svc.Mask(content)
	assert.Contains(t, masked, "[MASKED_PASSWORD]")
	assert.NotContains(t, masked, "hunter22")
}

func TestMaskKubernetesGroupAppliesCodeMasker(t *testing.T) {
	svc := NewService(config.MaskingConfig{Enabled: true, PatternGroup: "kubernetes"})
	content := "kind: Secret\ndata:\n  password: c3VwZXJzZWNyZXQ=\n"
	masked := svc.Mask(content)
	assert.Contains(t, masked, MaskedSecretValue)
	assert.NotContains(t, masked, "c3VwZXJzZWNyZXQ=")
}

func TestMaskLeavesUnrelatedTextUntouched(t *testing.T) {
	svc := NewService(config.MaskingConfig{Enabled: true, PatternGroup: "security"})
	content := "step completed: listed 3 pods in namespace default"
	assert.Equal(t, content, svc.Mask(content))
}

func TestMaskDefaultConfigAppliesKubernetesSecretMasker(t *testing.T) {
	svc := NewService(*config.DefaultMaskingConfig())
	content := "kind: Secret\ndata:\n  password: c3VwZXJzZWNyZXQ=\n"
	masked := svc.Mask(content)
	assert.Contains(t, masked, MaskedSecretValue)
	assert.NotContains(t, masked, "c3VwZXJzZWNyZXQ=")
}
