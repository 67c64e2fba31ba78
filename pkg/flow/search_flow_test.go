package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/llm"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/sandbox"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/search"
)

func TestSearchSubFlowPassesOnFirstRound(t *testing.T) {
	responses := []llm.Response{
		{Type: llm.ResponseTypeText, Content: `{"gaps":[{"text":"what year was it founded","is_file_download":false}]}`},
		{Type: llm.ResponseTypeText, Content: `it was founded in 1999`},
		{Type: llm.ResponseTypeText, Content: `{"dimensions":{"definitive":true,"completeness":true,"basic":true}}`},
		{Type: llm.ResponseTypeText, Content: `Final answer: founded in 1999.`},
	}
	client := llm.NewStubClient(responses...)
	engine := search.NewStubEngine(search.Result{Title: "Co history", URL: "https://example.com", Snippet: "founded 1999"})

	collab := Collaborators{
		LLM:     client,
		Sandbox: sandbox.New("sb-1", sandbox.NewMemoryImplementation()),
		Search:  engine,
	}
	sf := NewSearchSubFlow(collab)
	step := &domain.Step{ID: "s1", Description: "when was the company founded?"}

	events := collectEvents(t, sf.Run(context.Background(), step, nil), 5*time.Second)
	require.NotEmpty(t, events)

	assert.Equal(t, domain.StepStatusCompleted, step.Status)
	assert.Contains(t, step.Result, "1999")

	foundToolCall := false
	for _, e := range events {
		if e.Kind == domain.EventKindToolCalling && e.Tool == "search" {
			foundToolCall = true
		}
	}
	assert.True(t, foundToolCall, "expected a search tool-call event")
}

func TestSearchSubFlowReflectsOnFailureThenSynthesizesInsufficient(t *testing.T) {
	responses := []llm.Response{
		{Type: llm.ResponseTypeText, Content: `{"gaps":[{"text":"obscure fact","is_file_download":false}]}`},
		{Type: llm.ResponseTypeText, Content: `unclear answer`},
		{Type: llm.ResponseTypeText, Content: `{"dimensions":{"definitive":false,"completeness":false,"basic":true}}`},
		{Type: llm.ResponseTypeText, Content: `{"gaps":[]}`},
	}
	client := llm.NewStubClient(responses...)
	engine := search.NewStubEngine()

	collab := Collaborators{
		LLM:     client,
		Sandbox: sandbox.New("sb-1", sandbox.NewMemoryImplementation()),
		Search:  engine,
	}
	sf := NewSearchSubFlow(collab)
	step := &domain.Step{ID: "s1", Description: "an obscure question"}

	events := collectEvents(t, sf.Run(context.Background(), step, nil), 5*time.Second)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.StepStatusCompleted, step.Status)
	assert.Contains(t, step.Result, "insufficient")
}
