// Package domain holds the core types shared by the agent runtime: the
// Agent identity and memories, the hierarchical Plan/Step model, the
// AgentEvent sum type, and the persisted projections of all three.
package domain

import (
	"encoding/json"
	"time"
)

// FlowKind identifies which Flow implementation drives an agent.
type FlowKind string

// Recognised flow kinds. "default" is the general-purpose super-flow;
// the rest name sub-flow specialisations that may also be requested at
// the top level for narrowly-scoped agents.
const (
	FlowKindDefault   FlowKind = "default"
	FlowKindCode      FlowKind = "code"
	FlowKindSearch    FlowKind = "search"
	FlowKindReasoning FlowKind = "reasoning"
	FlowKindFile      FlowKind = "file"
)

// AgentStatus is the lifecycle status of an AgentContext.
type AgentStatus string

const (
	AgentStatusCreated AgentStatus = "created"
	AgentStatusRunning AgentStatus = "running"
	AgentStatusStopped AgentStatus = "stopped"
	AgentStatusError   AgentStatus = "error"
)

// MessageRole tags who produced a memory entry.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Reference points at a file or web resource attached to a message or step.
type Reference struct {
	Kind string `json:"kind"` // "file" or "web"
	ID   string `json:"id,omitempty"`
	URL  string `json:"url,omitempty"`
	Name string `json:"name,omitempty"`
}

// MemoryEntry is one role-tagged message in an agent's planner or
// execution memory, with any file/web references attached to it.
type MemoryEntry struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	References []Reference `json:"references,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Memory is an ordered, append-only log of MemoryEntry values. It is not
// safe for concurrent use by multiple goroutines; callers (the owning
// Flow Engine instance) serialise access the same way they serialise
// everything else about one agent.
type Memory struct {
	entries []MemoryEntry
}

// Append adds an entry to the end of the memory log.
func (m *Memory) Append(e MemoryEntry) {
	m.entries = append(m.entries, e)
}

// Entries returns the memory log in order. The returned slice must not be
// mutated by the caller.
func (m *Memory) Entries() []MemoryEntry {
	return m.entries
}

// Len returns the number of entries currently held.
func (m *Memory) Len() int {
	return len(m.entries)
}

// Reset discards all entries, used when a super-flow is interrupted and
// restarts planning from scratch.
func (m *Memory) Reset() {
	m.entries = nil
}

// MarshalJSON renders the entry log as a plain JSON array, so a Memory
// round-trips through the context store without exposing its field.
func (m Memory) MarshalJSON() ([]byte, error) {
	if m.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m.entries)
}

// UnmarshalJSON restores the entry log from a plain JSON array.
func (m *Memory) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &m.entries)
}

// ModelConfig configures which LLM backend an agent's flow engine calls
// into and with what sampling parameters.
type ModelConfig struct {
	Name        string  `json:"name"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Agent is the live, in-memory identity bundling configuration and
// memories. It is created by the runtime, mutated only by its owning
// Flow Engine instance, and destroyed on close.
type Agent struct {
	ID          string
	UserID      string
	Flow        FlowKind
	Model       ModelConfig
	Environment map[string]string

	PlannerMemory   Memory
	ExecutionMemory Memory
}

// LastMessage records the most recently accepted user message, used for
// duplicate suppression in Agent Runtime.send_message.
type LastMessage struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Equal reports whether two LastMessage values represent the same
// (text, timestamp) pair for duplicate-suppression purposes.
func (l LastMessage) Equal(other LastMessage) bool {
	return l.Text == other.Text && l.Timestamp.Equal(other.Timestamp)
}

// AgentContext is the persistent projection of an Agent: identity,
// embedded Agent, sandbox binding, status, last message, and metadata.
// The authoritative copy is the one held by the live runtime when
// present; otherwise the store copy is authoritative.
type AgentContext struct {
	AgentID     string
	Agent       Agent
	FlowKind    FlowKind
	SandboxID   string
	Status      AgentStatus
	LastMessage *LastMessage
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
