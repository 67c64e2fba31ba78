package flow

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/llm"
)

// Reporter is the Report collaborator: it synthesises a final natural
// language answer from the accumulated knowledge memory and the
// completed plan.
type Reporter struct {
	client llm.Client
}

// NewReporter wraps client as a Reporter.
func NewReporter(client llm.Client) *Reporter {
	return &Reporter{client: client}
}

const reportSystemPrompt = `You are the reporting module of an autonomous agent. Synthesise a final answer to the
user's original goal from the plan and accumulated knowledge below. Reply in plain prose, no JSON.`

// Synthesize produces the final report text for a completed plan.
func (r *Reporter) Synthesize(ctx context.Context, plan *domain.Plan, knowledge []domain.MemoryEntry) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: reportSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Goal: %s\nPlan:\n%s", plan.Goal, summarizePlan(plan))},
	}
	for _, e := range knowledge {
		messages = append(messages, llm.Message{Role: llm.Role(e.Role), Content: e.Content})
	}

	resp, err := r.client.Ask(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("synthesize report: %w", err)
	}
	return resp.Content, nil
}
