// Package browser defines the Browser collaborator contract: an opaque
// handle bound to a sandbox's Chrome DevTools Protocol endpoint. The
// agent runtime core only needs to mint and release the handle; actual
// tool calls against it flow through the same tool-dispatch path as any
// other sandbox-exposed tool, so this package stays deliberately thin.
package browser

import "context"

// Browser is an opaque session bound to one CDP endpoint for the
// lifetime of the owning sandbox.
type Browser interface {
	// CDPURL is the devtools endpoint this session was created from.
	CDPURL() string

	// Close releases the underlying browser session.
	Close(ctx context.Context) error
}

// Factory creates a Browser bound to a sandbox's CDP endpoint.
type Factory interface {
	New(ctx context.Context, cdpURL string) (Browser, error)
}
