package masking

import "github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"

// RedactEvent returns a copy of evt with every free-text field passed
// through svc.Mask: Text (Message/Report/UserInput/Error), Args and
// ToolResult (ToolCalling/ToolCalled). Structured fields (Plan, Step) are
// left untouched; sandbox tool output and model-authored free text are
// the fields most likely to carry a credential a collaborator leaked.
func RedactEvent(svc *Service, evt domain.AgentEvent) domain.AgentEvent {
	if svc == nil {
		return evt
	}
	evt.Text = svc.Mask(evt.Text)
	evt.Args = svc.Mask(evt.Args)
	evt.ToolResult = svc.Mask(evt.ToolResult)
	return evt
}

// RedactMemoryEntry returns a copy of e with Content passed through
// svc.Mask, applied before a memory entry is persisted or replayed back
// to the LLM collaborator.
func RedactMemoryEntry(svc *Service, e domain.MemoryEntry) domain.MemoryEntry {
	if svc == nil {
		return e
	}
	e.Content = svc.Mask(e.Content)
	return e
}
