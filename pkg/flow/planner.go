package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/llm"
)

// Planner is the Planner collaborator: it asks the LLM to decompose a
// goal (or, on revision, the execution history so far) into a Plan.
type Planner struct {
	client llm.Client
}

// NewPlanner wraps client as a Planner.
func NewPlanner(client llm.Client) *Planner {
	return &Planner{client: client}
}

// planStepWire is the JSON shape the planning prompt requests for one
// step; sub_plan_step is the parallel-group label (ascending, steps
// sharing a label run as one group).
type planStepWire struct {
	Description string `json:"description"`
	SubFlowType string `json:"sub_flow_type"`
	SubPlanStep *int   `json:"sub_plan_step"`
}

type planWire struct {
	Title string         `json:"title"`
	Steps []planStepWire `json:"steps"`
}

const planSystemPrompt = `You are the planning module of an autonomous agent. Given a user goal, decompose it into
a short list of concrete steps. Each step has a sub_flow_type of one of: code, search, reasoning, file.
Assign each step a sub_plan_step integer label: steps that can run in parallel share the same label; labels
must strictly increase across sequential groups, starting at 1.
Reply with ONLY a JSON object: {"title": "...", "steps": [{"description": "...", "sub_flow_type": "...", "sub_plan_step": 1}]}`

// Plan asks the LLM to produce an initial Plan for goal.
func (p *Planner) Plan(ctx context.Context, goal string) (*domain.Plan, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: planSystemPrompt},
		{Role: llm.RoleUser, Content: goal},
	}
	var wire planWire
	if err := askJSON(ctx, p.client, messages, &wire); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return wireToPlan(goal, wire), nil
}

const planUpdateSystemPrompt = `You are the planning module of an autonomous agent, now revising a plan given execution
history. Decide which further steps (if any) are still needed; completed/failed steps must not be repeated.
If the goal is fully satisfied, return an empty steps list. If user input is required before continuing and none
is available, set "paused": true.
Reply with ONLY a JSON object: {"title": "...", "paused": false, "steps": [{"description": "...", "sub_flow_type": "...", "sub_plan_step": 1}]}`

type planUpdateWire struct {
	Title  string         `json:"title"`
	Paused bool           `json:"paused"`
	Steps  []planStepWire `json:"steps"`
}

// Update asks the LLM to revise plan given the accumulated knowledge
// memory, appending newly proposed steps and optionally pausing it.
func (p *Planner) Update(ctx context.Context, plan *domain.Plan, knowledge []domain.MemoryEntry) (*domain.Plan, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: planUpdateSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Goal: %s\nCurrent plan: %s", plan.Goal, summarizePlan(plan))},
	}
	for _, e := range knowledge {
		messages = append(messages, llm.Message{Role: llm.Role(e.Role), Content: e.Content})
	}

	var wire planUpdateWire
	if err := askJSON(ctx, p.client, messages, &wire); err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}

	updated := *plan
	if wire.Title != "" {
		updated.Title = wire.Title
	}
	if wire.Paused {
		updated.Status = domain.PlanStatusPaused
	}
	for i, sw := range wire.Steps {
		updated.Steps = append(updated.Steps, planStepWireToStep(sw, i))
	}
	return &updated, nil
}

func wireToPlan(goal string, wire planWire) *domain.Plan {
	plan := &domain.Plan{
		ID:     uuid.NewString(),
		Goal:   goal,
		Title:  wire.Title,
		Status: domain.PlanStatusRunning,
	}
	for i, sw := range wire.Steps {
		plan.Steps = append(plan.Steps, planStepWireToStep(sw, i))
	}
	return plan
}

func planStepWireToStep(sw planStepWire, index int) domain.Step {
	return domain.Step{
		ID:          uuid.NewString(),
		Description: sw.Description,
		Status:      domain.StepStatusPending,
		SubFlowType: inferSubFlowType(sw.SubFlowType, sw.Description),
		SubPlanStep: sw.SubPlanStep,
	}
}

// inferSubFlowType falls back to keyword inference over the step
// description when the planner omitted or mis-typed sub_flow_type.
func inferSubFlowType(declared string, description string) domain.SubFlowType {
	switch domain.SubFlowType(declared) {
	case domain.SubFlowTypeCode, domain.SubFlowTypeSearch, domain.SubFlowTypeReasoning, domain.SubFlowTypeFile:
		return domain.SubFlowType(declared)
	}
	return inferFromKeywords(description)
}

func inferFromKeywords(description string) domain.SubFlowType {
	lower := strings.ToLower(description)
	switch {
	case containsAny(lower, "search", "look up", "find online", "research"):
		return domain.SubFlowTypeSearch
	case containsAny(lower, "write code", "run", "script", "compile", "execute", "install"):
		return domain.SubFlowTypeCode
	case containsAny(lower, "file", "read", "write to", "upload", "download"):
		return domain.SubFlowTypeFile
	default:
		return domain.SubFlowTypeReasoning
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func summarizePlan(plan *domain.Plan) string {
	out := plan.Title + "\n"
	for _, s := range plan.Steps {
		out += fmt.Sprintf("- [%s] %s: %s\n", s.Status, s.Description, s.Result)
	}
	return out
}
