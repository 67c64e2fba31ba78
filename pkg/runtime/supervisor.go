package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/events"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/masking"
)

// supervise drains ra's work queue one message at a time, running each
// through the Flow Engine and forwarding its events to the broadcaster.
// A new message arriving mid-flow preempts the current run at the next
// event boundary: the super-flow's own Run semantics already cancel and
// restart on re-entry, so the supervisor only needs to stop forwarding
// the superseded run's remaining events and start the next one.
func (r *Runtime) supervise(ctx context.Context, agentID string, ra *runningAgent) {
	defer close(ra.done)

	log := slog.With("agent_id", agentID)

	for {
		var message domain.MemoryEntry
		select {
		case <-ctx.Done():
			r.onSupervisorCancelled(agentID)
			return
		case message = <-ra.workQueue:
		case <-time.After(r.cfg.WorkQueueDrainTimeout):
			continue
		}

		if err := r.runOnce(ctx, agentID, ra, message); err != nil {
			if errors.Is(err, context.Canceled) {
				r.onSupervisorCancelled(agentID)
				return
			}
			log.Error("flow run failed", "error", err)
			r.emitTerminal(agentID, domain.NewError(err.Error()))
			ra.mu.Lock()
			ra.ctx.Status = domain.AgentStatusError
			ra.mu.Unlock()
			_ = r.store.UpsertContext(context.Background(), ra.ctx)
		}
	}
}

// runOnce drives one Flow Engine invocation to completion (or until
// preempted by a newer message), forwarding every event to the
// broadcaster and persisting the plan title on the first PlanCreated.
func (r *Runtime) runOnce(ctx context.Context, agentID string, ra *runningAgent, message domain.MemoryEntry) error {
	ra.mu.Lock()
	agent := ra.agent
	ra.mu.Unlock()

	titleRecorded := false
	for event := range ra.super.Run(ctx, agent, message) {
		event = masking.RedactEvent(r.masker, event)
		if _, err := r.events.Notify(ctx, agentID, event, r.eventCfg.MaxBufferSize); err != nil {
			if errors.Is(err, events.ErrAlreadyDone) {
				continue
			}
			return fmt.Errorf("notify: %w", err)
		}

		if !titleRecorded && event.Kind == domain.EventKindPlanCreated && event.IsSuper && event.Plan != nil {
			titleRecorded = true
			_ = r.store.UpsertConversation(context.Background(), agentID, agent.UserID, string(ra.ctx.FlowKind), event.Plan.Title, time.Now())
		}

		if len(ra.workQueue) > 0 {
			break // preempt: a newer message is waiting, re-plan from it next iteration
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// onSupervisorCancelled implements the cancellation contract: emit
// Error+Done so any live readers observe a clean terminal, then mark
// the agent stopped.
func (r *Runtime) onSupervisorCancelled(agentID string) {
	r.emitTerminal(agentID, domain.NewError("cancelled"))

	r.mu.Lock()
	ra, ok := r.agents[agentID]
	r.mu.Unlock()
	if ok {
		ra.mu.Lock()
		ra.ctx.Status = domain.AgentStatusStopped
		snapshot := *ra.ctx
		ra.mu.Unlock()
		_ = r.store.UpsertContext(context.Background(), &snapshot)
	}
}

// emitTerminal best-effort notifies evt followed by Done, ignoring
// ErrAlreadyDone: the buffer may already have a Done from the flow's own
// completion path, and the Done-terminality invariant is enforced at the
// broadcaster, not relied on here.
func (r *Runtime) emitTerminal(agentID string, evt domain.AgentEvent) {
	ctx := context.Background()
	if _, err := r.events.Notify(ctx, agentID, evt, r.eventCfg.MaxBufferSize); err != nil && !errors.Is(err, events.ErrAlreadyDone) {
		slog.Warn("failed to notify terminal event", "agent_id", agentID, "error", err)
	}
	if _, err := r.events.Notify(ctx, agentID, domain.NewDone(), r.eventCfg.MaxBufferSize); err != nil && !errors.Is(err, events.ErrAlreadyDone) {
		slog.Warn("failed to notify done event", "agent_id", agentID, "error", err)
	}
}
