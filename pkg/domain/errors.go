package domain

import "errors"

// Error taxonomy. Packages wrap these with fmt.Errorf("...: %w", ...)
// so callers can classify failures with errors.Is regardless of which
// layer raised them.
var (
	// ErrNotFound: unknown agent / sandbox / subscriber.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied: file operations in the sandbox.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidFlow: unknown flow kind requested on create.
	ErrInvalidFlow = errors.New("invalid flow kind")

	// ErrAgentNotRunning: agent exists in the store but rehydration into
	// the live runtime failed or is impossible.
	ErrAgentNotRunning = errors.New("agent not running")

	// ErrSandboxUnavailable: sandbox factory failure on create.
	ErrSandboxUnavailable = errors.New("sandbox unavailable")

	// ErrStorageError: underlying store failure.
	ErrStorageError = errors.New("storage error")

	// ErrToolError: sandbox/LLM/search collaborator call failure.
	ErrToolError = errors.New("tool error")

	// ErrCancelled: cooperative cancellation.
	ErrCancelled = errors.New("cancelled")
)
