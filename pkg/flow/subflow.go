package flow

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
)

// subFlowPrompts names the tool-set/prompt family variation between the
// code/file/reasoning sub-flow kinds; the search kind is handled
// separately by SearchSubFlow since it runs a distinctive loop.
var subFlowPrompts = map[domain.SubFlowType]string{
	domain.SubFlowTypeCode:      "You are a coding sub-agent. Use the available tools to write, run, and debug code to accomplish the task.",
	domain.SubFlowTypeFile:      "You are a file-handling sub-agent. Use the available tools to read, write, and organise files to accomplish the task.",
	domain.SubFlowTypeReasoning: "You are a reasoning sub-agent. Think through the task step by step and produce a conclusion; use tools only if genuinely needed.",
}

// SubFlow is one step's inner flow instance: plan -> execute -> update ->
// report, one level down from the super-flow, wired to the same
// collaborators. A fresh instance is produced per step by Factory.
type SubFlow interface {
	// Run drives the sub-flow to completion for step, emitting events on
	// the returned channel (closed when the sub-flow finishes). It never
	// emits Done; that is the super-flow's terminal marker alone.
	Run(ctx context.Context, step *domain.Step, knowledge []domain.MemoryEntry) <-chan domain.AgentEvent
}

// Factory produces a fresh SubFlow instance per step, selecting the
// implementation by the step's SubFlowType.
type Factory struct {
	collab Collaborators
}

// NewFactory builds a sub-flow Factory over collab.
func NewFactory(collab Collaborators) *Factory {
	return &Factory{collab: collab}
}

// New returns a fresh SubFlow for kind.
func (f *Factory) New(kind domain.SubFlowType) SubFlow {
	if kind == domain.SubFlowTypeSearch {
		return NewSearchSubFlow(f.collab)
	}
	return &genericSubFlow{
		collab: f.collab,
		prompt: subFlowPrompts[kind],
	}
}

// genericSubFlow implements the code/file/reasoning sub-flow kinds: a
// single plan -> execute -> update -> report pass, one level down from
// the super-flow.
type genericSubFlow struct {
	collab Collaborators
	prompt string
}

func (g *genericSubFlow) Run(ctx context.Context, step *domain.Step, knowledge []domain.MemoryEntry) <-chan domain.AgentEvent {
	out := make(chan domain.AgentEvent, 16)
	go g.run(ctx, step, knowledge, out)
	return out
}

func (g *genericSubFlow) run(ctx context.Context, step *domain.Step, knowledge []domain.MemoryEntry, out chan<- domain.AgentEvent) {
	defer close(out)

	planner := NewPlanner(g.collab.LLM)
	plan, err := planner.Plan(ctx, step.Description)
	if err != nil {
		emit(ctx, out, domain.NewError(fmt.Sprintf("sub-flow planning failed: %v", err)))
		step.Status = domain.StepStatusFailed
		step.Error = err.Error()
		return
	}
	if !emit(ctx, out, domain.NewPlanCreated(plan, false)) {
		return
	}

	exec := NewExecutionAgent(g.collab.LLM, g.collab.Sandbox)
	var results []string
	for i := range plan.Steps {
		inner := &plan.Steps[i]
		if ctx.Err() != nil {
			return
		}
		inner.Status = domain.StepStatusRunning
		if !emit(ctx, out, domain.NewStepStarted(inner)) {
			return
		}

		answer, toolEvents, err := exec.Run(ctx, g.prompt, describeWithKnowledge(inner.Description, knowledge))
		for _, te := range toolEvents {
			if !emit(ctx, out, domain.NewToolCalling(te.Tool, te.Function, te.Args)) {
				return
			}
			if !emit(ctx, out, domain.NewToolCalled(te.Tool, te.Function, te.Args, te.Result)) {
				return
			}
		}
		if err != nil {
			inner.Status = domain.StepStatusFailed
			inner.Error = err.Error()
			if !emit(ctx, out, domain.NewStepFailed(inner)) {
				return
			}
			continue
		}
		inner.Status = domain.StepStatusCompleted
		inner.Result = answer
		results = append(results, answer)
		if !emit(ctx, out, domain.NewStepCompleted(inner)) {
			return
		}
	}

	plan.Status = domain.PlanStatusCompleted
	if !emit(ctx, out, domain.NewPlanCompleted(plan, false)) {
		return
	}

	reporter := NewReporter(g.collab.LLM)
	report, err := reporter.Synthesize(ctx, plan, knowledge)
	if err != nil {
		step.Status = domain.StepStatusFailed
		step.Error = err.Error()
		emit(ctx, out, domain.NewError(fmt.Sprintf("sub-flow reporting failed: %v", err)))
		return
	}

	step.Status = domain.StepStatusCompleted
	step.Result = report
	emit(ctx, out, domain.NewReport(report))
}

func describeWithKnowledge(description string, knowledge []domain.MemoryEntry) string {
	if len(knowledge) == 0 {
		return description
	}
	out := description + "\n\nKnowledge so far:\n"
	for _, k := range knowledge {
		out += fmt.Sprintf("- %s\n", k.Content)
	}
	return out
}

// emit sends event on out, returning false if ctx was cancelled first.
// It is the shared pattern every Flow Engine event producer uses to stay
// responsive to interruption/cancellation.
func emit(ctx context.Context, out chan<- domain.AgentEvent, event domain.AgentEvent) bool {
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
