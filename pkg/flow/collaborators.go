// Package flow implements the Flow Engine (C4): a hierarchical state
// machine whose outer super-flow is instantiated once per agent and
// whose inner sub-flows are spawned per step.
package flow

import (
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/browser"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/llm"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/masking"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/sandbox"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/search"
)

// Collaborators bundles every external dependency a Flow Engine
// instance is wired to at construction time: one LLM client, the
// agent's exclusively-owned sandbox, a browser handle, and a search
// engine. All are shared, read-only references; the Flow Engine owns
// no lifecycle over them beyond its own Run call.
type Collaborators struct {
	LLM     llm.Client
	Sandbox *sandbox.Sandbox
	Browser browser.Browser
	Search  search.Engine

	// Masker redacts step results before they join execution memory.
	// May be nil, in which case memory entries pass through unredacted.
	Masker *masking.Service
}

// MaxIterations bounds the search sub-flow's gap->search->score->reflect
// loop.
const MaxIterations = 3
