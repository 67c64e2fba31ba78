// Package store defines the persistence contract the agent runtime's
// Event Buffer (C1), Broadcaster Registry (C2), Subscription Stream (C3)
// and Agent Runtime (C5) are built on, plus a PostgreSQL implementation
// (pkg/store/postgres.go, using a "FOR UPDATE" claiming idiom) and an
// in-memory one (pkg/store/memory.go) for fast unit tests.
package store

import (
	"context"
	"time"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
)

// Store is the full persistence surface the runtime depends on.
type Store interface {
	// GetContext returns the persisted AgentContext for agentID, or
	// domain.ErrNotFound.
	GetContext(ctx context.Context, agentID string) (*domain.AgentContext, error)
	// UpsertContext creates or overwrites the persisted AgentContext.
	UpsertContext(ctx context.Context, ac *domain.AgentContext) error
	// DeleteContext removes the persisted AgentContext. Idempotent.
	DeleteContext(ctx context.Context, agentID string) error
	// ListContextsByStatus returns every persisted AgentContext whose
	// Status matches status, used at startup to find agents left
	// recorded as running by a process that crashed without a
	// supervisor task ever marking them stopped.
	ListContextsByStatus(ctx context.Context, status domain.AgentStatus) ([]*domain.AgentContext, error)

	// UpsertConversation creates the conversation record for agentID if
	// absent; it never overwrites an existing row (first write wins).
	UpsertConversation(ctx context.Context, agentID, userID, flowID, title string, createdAt time.Time) error

	// Append assigns the next sequence number for agentID, persists
	// event as a BufferedEvent, evicts the oldest event(s) if the count
	// would exceed maxBufferSize, and advances the broadcaster's
	// current_sequence: all as one atomic unit. If no broadcaster row
	// exists yet for agentID, one is created with current_sequence=0
	// first (get-or-create is implicit in Append for this reason; C2
	// calls GetOrCreateBroadcaster first only to learn max_buffer_size
	// and updated_at up front).
	Append(ctx context.Context, agentID string, event domain.AgentEvent, now time.Time, maxBufferSize int) (sequence int64, err error)

	// EventsFrom returns persisted events for agentID with
	// sequence >= fromSequence, ascending. fromSequence <= 0 is treated
	// as 1.
	EventsFrom(ctx context.Context, agentID string, fromSequence int64) ([]domain.BufferedEvent, error)

	// LastIsDone reports whether the highest-sequence persisted event
	// for agentID is a Done event.
	LastIsDone(ctx context.Context, agentID string) (bool, error)

	// GetOrCreateBroadcaster returns the Broadcaster scalar row for
	// agentID, creating it with current_sequence=0 if absent. Concurrent
	// callers for the same agentID converge on one row.
	GetOrCreateBroadcaster(ctx context.Context, agentID string, maxBufferSize int, now time.Time) (*domain.Broadcaster, error)

	// ClearEvents deletes every persisted event for agentID without
	// resetting current_sequence.
	ClearEvents(ctx context.Context, agentID string) error

	// DeleteBroadcaster cascade-deletes the broadcaster row and all its
	// buffered events. Idempotent.
	DeleteBroadcaster(ctx context.Context, agentID string) error

	// CreateSubscriber inserts a new active subscriber row.
	CreateSubscriber(ctx context.Context, sub *domain.Subscriber) error
	// TouchSubscriber refreshes last_activity for subscriberID to now.
	TouchSubscriber(ctx context.Context, subscriberID string, now time.Time) error
	// DeleteSubscriber removes the subscriber row. Idempotent.
	DeleteSubscriber(ctx context.Context, subscriberID string) error
	// SweepExpiredSubscribers marks every active subscriber whose
	// last_activity is older than its own heartbeat_timeout_seconds as
	// inactive, returning the count affected.
	SweepExpiredSubscribers(ctx context.Context, now time.Time) (int, error)
}
