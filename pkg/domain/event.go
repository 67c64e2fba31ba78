package domain

import "time"

// EventKind discriminates the AgentEvent sum type. It doubles as the
// event_type column value in the buffered_events table.
type EventKind string

const (
	EventKindPlanCreated   EventKind = "plan_created"
	EventKindPlanUpdated   EventKind = "plan_updated"
	EventKindPlanCompleted EventKind = "plan_completed"
	EventKindStepStarted   EventKind = "step_started"
	EventKindStepCompleted EventKind = "step_completed"
	EventKindStepFailed    EventKind = "step_failed"
	EventKindToolCalling   EventKind = "tool_calling"
	EventKindToolCalled    EventKind = "tool_called"
	EventKindMessage       EventKind = "message"
	EventKindReport        EventKind = "report"
	EventKindUserInput     EventKind = "user_input"
	EventKindError         EventKind = "error"
	EventKindPause         EventKind = "pause"
	EventKindDone          EventKind = "done"
)

// AgentEvent is the sum type emitted by a running flow. Events are
// immutable once created and carry no identity beyond the sequence
// number assigned when buffered. Exactly one of the typed fields below
// is populated, selected by Kind.
type AgentEvent struct {
	Kind EventKind

	// PlanCreated / PlanUpdated / PlanCompleted
	Plan    *Plan
	IsSuper bool

	// StepStarted / StepCompleted / StepFailed
	Step *Step

	// ToolCalling / ToolCalled
	Tool         string
	Function     string
	Args         string
	ToolResult   string

	// Message / Report / Error
	Text string

	// UserInput
	FileIDs []string
}

// NewPlanCreated builds a PlanCreated event.
func NewPlanCreated(p *Plan, isSuper bool) AgentEvent {
	return AgentEvent{Kind: EventKindPlanCreated, Plan: p, IsSuper: isSuper}
}

// NewPlanUpdated builds a PlanUpdated event.
func NewPlanUpdated(p *Plan, isSuper bool) AgentEvent {
	return AgentEvent{Kind: EventKindPlanUpdated, Plan: p, IsSuper: isSuper}
}

// NewPlanCompleted builds a PlanCompleted event.
func NewPlanCompleted(p *Plan, isSuper bool) AgentEvent {
	return AgentEvent{Kind: EventKindPlanCompleted, Plan: p, IsSuper: isSuper}
}

// NewStepStarted builds a StepStarted event.
func NewStepStarted(s *Step) AgentEvent { return AgentEvent{Kind: EventKindStepStarted, Step: s} }

// NewStepCompleted builds a StepCompleted event.
func NewStepCompleted(s *Step) AgentEvent {
	return AgentEvent{Kind: EventKindStepCompleted, Step: s}
}

// NewStepFailed builds a StepFailed event.
func NewStepFailed(s *Step) AgentEvent { return AgentEvent{Kind: EventKindStepFailed, Step: s} }

// NewToolCalling builds a ToolCalling event.
func NewToolCalling(tool, function, args string) AgentEvent {
	return AgentEvent{Kind: EventKindToolCalling, Tool: tool, Function: function, Args: args}
}

// NewToolCalled builds a ToolCalled event.
func NewToolCalled(tool, function, args, result string) AgentEvent {
	return AgentEvent{Kind: EventKindToolCalled, Tool: tool, Function: function, Args: args, ToolResult: result}
}

// NewMessage builds a Message event.
func NewMessage(text string) AgentEvent { return AgentEvent{Kind: EventKindMessage, Text: text} }

// NewReport builds a Report event.
func NewReport(text string) AgentEvent { return AgentEvent{Kind: EventKindReport, Text: text} }

// NewUserInput builds a UserInput event.
func NewUserInput(text string, fileIDs []string) AgentEvent {
	return AgentEvent{Kind: EventKindUserInput, Text: text, FileIDs: fileIDs}
}

// NewError builds an Error event.
func NewError(text string) AgentEvent { return AgentEvent{Kind: EventKindError, Text: text} }

// NewPause builds a Pause event.
func NewPause() AgentEvent { return AgentEvent{Kind: EventKindPause} }

// NewDone builds a Done event.
func NewDone() AgentEvent { return AgentEvent{Kind: EventKindDone} }

// IsDone reports whether this event is the terminal Done marker.
func (e AgentEvent) IsDone() bool { return e.Kind == EventKindDone }

// BufferedEvent is an AgentEvent pinned to a (agent_id, sequence) pair
// once it has passed through the Event Buffer.
type BufferedEvent struct {
	AgentID   string
	Sequence  int64
	Event     AgentEvent
	Timestamp time.Time
}
