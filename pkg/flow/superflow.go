package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/masking"
)

// State is one of the super-flow's six states.
type State string

const (
	StateIdle      State = "idle"
	StatePlanning  State = "planning"
	StateExecuting State = "executing"
	StateUpdating  State = "updating"
	StateReporting State = "reporting"
	StateCompleted State = "completed"
)

// SuperFlow is the outer Flow Engine instance for one agent: a
// persistent state machine the Agent Runtime's supervisor task calls
// Run on once per dequeued message, generalised from a single ReAct
// loop into the plan/execute/update/report cycle this system requires.
type SuperFlow struct {
	collab  Collaborators
	factory *Factory

	mu    sync.Mutex
	state State
	plan  *domain.Plan

	cancelPrev context.CancelFunc
	prevDone   chan struct{}
}

// NewSuperFlow builds an idle SuperFlow over collab.
func NewSuperFlow(collab Collaborators) *SuperFlow {
	return &SuperFlow{
		collab:  collab,
		factory: NewFactory(collab),
		state:   StateIdle,
	}
}

// Run drives the super-flow for one user message, returning a channel
// of events closed when this run concludes (Completed->Idle, a pause,
// or cancellation). If the engine was not Idle when Run is called, a
// new message arrived mid-flow, so any in-flight run is cancelled first
// and the engine restarts planning from scratch with reset memories,
// treating message as a fresh top-level goal.
func (f *SuperFlow) Run(ctx context.Context, agent *domain.Agent, message domain.MemoryEntry) <-chan domain.AgentEvent {
	f.mu.Lock()
	prevCancel := f.cancelPrev
	prevDone := f.prevDone
	wasIdle := f.state == StateIdle
	f.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	if prevDone != nil {
		<-prevDone // wait for the in-flight sub-flow to actually observe cancellation
	}
	if !wasIdle {
		agent.PlannerMemory.Reset()
		agent.ExecutionMemory.Reset()
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	f.mu.Lock()
	f.plan = nil
	f.cancelPrev = cancel
	f.prevDone = done
	f.state = StatePlanning
	f.mu.Unlock()

	out := make(chan domain.AgentEvent, 32)
	go func() {
		defer close(done)
		defer close(out)
		defer cancel()
		f.runLoop(runCtx, agent, message, out)
	}()
	return out
}

func (f *SuperFlow) runLoop(ctx context.Context, agent *domain.Agent, message domain.MemoryEntry, out chan<- domain.AgentEvent) {
	agent.PlannerMemory.Append(message)

	state := StatePlanning
	for {
		if ctx.Err() != nil {
			return
		}
		switch state {
		case StatePlanning:
			next, ok := f.doPlanning(ctx, agent, message, out)
			if !ok {
				return
			}
			state = next

		case StateExecuting:
			next, ok := f.doExecuting(ctx, agent, out)
			if !ok {
				return
			}
			state = next

		case StateUpdating:
			next, terminate, ok := f.doUpdating(ctx, agent, out)
			if !ok {
				return
			}
			if terminate {
				f.setState(StateIdle)
				return
			}
			state = next

		case StateReporting:
			if !f.doReporting(ctx, agent, out) {
				return
			}
			state = StateCompleted

		case StateCompleted:
			f.doCompleted(out)
			return
		}
	}
}

func (f *SuperFlow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *SuperFlow) doPlanning(ctx context.Context, agent *domain.Agent, message domain.MemoryEntry, out chan<- domain.AgentEvent) (State, bool) {
	f.setState(StatePlanning)
	planner := NewPlanner(f.collab.LLM)
	plan, err := planner.Plan(ctx, message.Content)
	if err != nil {
		if !emit(ctx, out, domain.NewError(fmt.Sprintf("planning failed: %v", err))) {
			return "", false
		}
		if !emit(ctx, out, domain.NewDone()) {
			return "", false
		}
		return "", false
	}

	f.mu.Lock()
	f.plan = plan
	f.mu.Unlock()

	if !emit(ctx, out, domain.NewPlanCreated(plan, true)) {
		return "", false
	}

	if len(plan.BuildParallelGroups()) == 0 {
		return StateReporting, true
	}
	return StateExecuting, true
}

// forwardable reports whether a sub-flow event should be re-emitted to
// the client: plan milestones and user-facing text, never tool chatter
// or the sub-flow's own inner step bookkeeping.
func forwardable(e domain.AgentEvent) bool {
	switch e.Kind {
	case domain.EventKindPlanCreated, domain.EventKindPlanUpdated, domain.EventKindPlanCompleted,
		domain.EventKindMessage, domain.EventKindReport:
		return true
	default:
		return false
	}
}

func (f *SuperFlow) doExecuting(ctx context.Context, agent *domain.Agent, out chan<- domain.AgentEvent) (State, bool) {
	f.setState(StateExecuting)

	f.mu.Lock()
	plan := f.plan
	f.mu.Unlock()

	groups := plan.BuildParallelGroups()
	if len(groups) == 0 {
		return StateUpdating, true
	}
	group := groups[0]

	if ctx.Err() != nil {
		return "", false
	}

	// Every step in a group reasons over the same snapshot of memory: none
	// of them has seen the others' results yet, since they run concurrently.
	knowledge := append(append([]domain.MemoryEntry{}, agent.PlannerMemory.Entries()...), agent.ExecutionMemory.Entries()...)

	for _, step := range group.Steps {
		step.Status = domain.StepStatusRunning
		if !emit(ctx, out, domain.NewStepStarted(step)) {
			return "", false
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, step := range group.Steps {
		step := step
		g.Go(func() error {
			return f.runStep(gctx, step, knowledge, agent, out)
		})
	}
	if err := g.Wait(); err != nil {
		return "", false
	}

	return StateUpdating, true
}

// runStep dispatches step to its sub-flow and forwards user-facing events
// as they arrive. Steps in the same parallel group each run in their own
// goroutine (one per errgroup.Go call in doExecuting); runStep only
// touches agent.ExecutionMemory, which is not itself safe for concurrent
// use, inside the f.mu critical section at the end, after the sub-flow
// itself has finished. A step's own failure is recorded on step and does
// not make runStep return an error: a failed step lets the plan continue
// (see domain.Plan.BuildParallelGroups); only a cancelled context or a
// closed out channel does.
func (f *SuperFlow) runStep(ctx context.Context, step *domain.Step, knowledge []domain.MemoryEntry, agent *domain.Agent, out chan<- domain.AgentEvent) error {
	sub := f.factory.New(step.SubFlowType)

	for ev := range sub.Run(ctx, step, knowledge) {
		if forwardable(ev) {
			if !emit(ctx, out, ev) {
				return ctx.Err()
			}
		}
	}

	if step.Status != domain.StepStatusCompleted && step.Status != domain.StepStatusFailed {
		step.Status = domain.StepStatusFailed
		step.Error = "sub-flow exited without reaching a terminal status"
		slog.Warn("sub-flow left step non-terminal", "step_id", step.ID, "sub_flow_type", step.SubFlowType)
	}

	f.mu.Lock()
	agent.ExecutionMemory.Append(masking.RedactMemoryEntry(f.collab.Masker, domain.MemoryEntry{
		Role:    domain.RoleAssistant,
		Content: fmt.Sprintf("[%s] %s", step.Description, step.Result),
	}))
	f.mu.Unlock()

	if step.Status == domain.StepStatusFailed {
		if !emit(ctx, out, domain.NewStepFailed(step)) {
			return ctx.Err()
		}
	} else if !emit(ctx, out, domain.NewStepCompleted(step)) {
		return ctx.Err()
	}
	return nil
}

func (f *SuperFlow) doUpdating(ctx context.Context, agent *domain.Agent, out chan<- domain.AgentEvent) (State, bool, bool) {
	f.setState(StateUpdating)

	f.mu.Lock()
	plan := f.plan
	f.mu.Unlock()

	planner := NewPlanner(f.collab.LLM)
	updated, err := planner.Update(ctx, plan, agent.ExecutionMemory.Entries())
	if err != nil {
		if !emit(ctx, out, domain.NewError(fmt.Sprintf("plan update failed: %v", err))) {
			return "", false, false
		}
		if !emit(ctx, out, domain.NewDone()) {
			return "", false, false
		}
		return "", false, false
	}

	f.mu.Lock()
	f.plan = updated
	f.mu.Unlock()

	if !emit(ctx, out, domain.NewPlanUpdated(updated, true)) {
		return "", false, false
	}

	if updated.Status == domain.PlanStatusPaused {
		return "", true, true
	}
	if len(updated.PendingSteps()) == 0 {
		return StateReporting, false, true
	}
	return StateExecuting, false, true
}

func (f *SuperFlow) doReporting(ctx context.Context, agent *domain.Agent, out chan<- domain.AgentEvent) bool {
	f.setState(StateReporting)

	f.mu.Lock()
	plan := f.plan
	f.mu.Unlock()

	reporter := NewReporter(f.collab.LLM)
	report, err := reporter.Synthesize(ctx, plan, agent.ExecutionMemory.Entries())
	if err != nil {
		if !emit(ctx, out, domain.NewError(fmt.Sprintf("report synthesis failed: %v", err))) {
			return false
		}
		return emit(ctx, out, domain.NewDone())
	}
	return emit(ctx, out, domain.NewReport(report))
}

func (f *SuperFlow) doCompleted(out chan<- domain.AgentEvent) {
	f.setState(StateCompleted)

	f.mu.Lock()
	plan := f.plan
	f.mu.Unlock()

	if plan != nil {
		plan.Status = domain.PlanStatusCompleted
		emit(context.Background(), out, domain.NewPlanCompleted(plan, true))
	}
	emit(context.Background(), out, domain.NewDone())
	f.setState(StateIdle)
}
