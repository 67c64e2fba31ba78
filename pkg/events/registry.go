// Package events implements the per-agent Event Buffer (C1) and
// Broadcaster Registry (C2): a keyed map of agent id to broadcaster that
// assigns monotonic sequence numbers, persists events, and wakes local
// pollers, with every mutating operation on a single agent's buffer
// serialised under that agent's own critical section.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/store"
)

// ErrAlreadyDone is returned by Notify when the agent's buffer already
// ends in a Done event: the Done-terminality invariant is enforced here,
// at the broadcaster, rather than relied on by callers upstream.
var ErrAlreadyDone = fmt.Errorf("events: agent already terminated with a Done event")

// broadcaster is the in-process object one agent's writers and readers
// share: a mutex serialising Notify calls, and a wake channel readers
// select on to shortcut their poll interval when a new event lands
// locally (cross-process readers still rely on polling the store).
type broadcaster struct {
	mu   sync.Mutex
	wake chan struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{wake: make(chan struct{})}
}

// signal closes and replaces the wake channel, unblocking every current
// waiter exactly once.
func (b *broadcaster) signal() {
	close(b.wake)
	b.wake = make(chan struct{})
}

// Registry is the Broadcaster Registry (C2): get_or_create / notify /
// delete, with one in-memory broadcaster object per agent converged on
// by concurrent callers via singleflight, and all mutating operations on
// a single agent's buffer serialised on that agent's mutex.
type Registry struct {
	store store.Store

	group singleflight.Group

	mu           sync.Mutex
	broadcasters map[string]*broadcaster
}

// NewRegistry builds a Broadcaster Registry over store.
func NewRegistry(s store.Store) *Registry {
	return &Registry{store: s, broadcasters: make(map[string]*broadcaster)}
}

// GetOrCreate returns the persisted Broadcaster scalar row for agentID,
// creating it with the given default max buffer size if absent, and
// ensures exactly one in-memory broadcaster object exists for it.
func (r *Registry) GetOrCreate(ctx context.Context, agentID string, defaultMaxBufferSize int) (*domain.Broadcaster, error) {
	v, err, _ := r.group.Do(agentID, func() (any, error) {
		b, err := r.store.GetOrCreateBroadcaster(ctx, agentID, defaultMaxBufferSize, time.Now())
		if err != nil {
			return nil, err
		}
		r.localBroadcaster(agentID)
		return b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get or create broadcaster: %w", err)
	}
	return v.(*domain.Broadcaster), nil
}

func (r *Registry) localBroadcaster(agentID string) *broadcaster {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.broadcasters[agentID]
	if !ok {
		b = newBroadcaster()
		r.broadcasters[agentID] = b
	}
	return b
}

// Notify appends event to agentID's buffer under that agent's critical
// section, advancing its sequence counter and evicting overflow, then
// wakes any local pollers. It refuses to append anything, including a
// second Done, once a Done has already been recorded. Callers that race
// to emit Done concurrently (the supervisor's own completion path and
// its cancellation/error path both can) converge on exactly one.
func (r *Registry) Notify(ctx context.Context, agentID string, event domain.AgentEvent, maxBufferSize int) (int64, error) {
	b := r.localBroadcaster(agentID)

	b.mu.Lock()
	defer b.mu.Unlock()

	alreadyDone, err := r.store.LastIsDone(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("check done-terminality: %w", err)
	}
	if alreadyDone {
		return 0, ErrAlreadyDone
	}

	sequence, err := r.store.Append(ctx, agentID, event, time.Now(), maxBufferSize)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}

	b.signal()
	return sequence, nil
}

// Wake returns the current wake channel for agentID, closed the next
// time Notify succeeds for that agent. A nil return means no local
// broadcaster object exists yet (the agent has never been notified in
// this process); callers should fall back to pure polling.
func (r *Registry) Wake(agentID string) <-chan struct{} {
	r.mu.Lock()
	b, ok := r.broadcasters[agentID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	b.mu.Lock()
	ch := b.wake
	b.mu.Unlock()
	return ch
}

// Delete cascade-deletes the broadcaster row and all its buffered
// events, and drops the in-memory object. Idempotent.
func (r *Registry) Delete(ctx context.Context, agentID string) error {
	r.mu.Lock()
	delete(r.broadcasters, agentID)
	r.mu.Unlock()

	if err := r.store.DeleteBroadcaster(ctx, agentID); err != nil {
		return fmt.Errorf("delete broadcaster: %w", err)
	}
	return nil
}

// Clear deletes every persisted event for agentID without resetting its
// sequence counter or dropping the broadcaster row, then wakes any local
// pollers so a live Subscription Stream observes the reset immediately
// instead of waiting out its poll backoff. Unlike Delete, the agent can
// keep running under the same id and sequence numbering afterward.
func (r *Registry) Clear(ctx context.Context, agentID string) error {
	if err := r.store.ClearEvents(ctx, agentID); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}

	b := r.localBroadcaster(agentID)
	b.mu.Lock()
	b.signal()
	b.mu.Unlock()
	return nil
}

// EventsFrom returns persisted events for agentID from fromSequence
// onward, delegating directly to the store (a read-only operation that
// may run concurrently against a consistent snapshot).
func (r *Registry) EventsFrom(ctx context.Context, agentID string, fromSequence int64) ([]domain.BufferedEvent, error) {
	return r.store.EventsFrom(ctx, agentID, fromSequence)
}

// LastIsDone reports whether agentID's buffer currently ends in Done.
func (r *Registry) LastIsDone(ctx context.Context, agentID string) (bool, error) {
	return r.store.LastIsDone(ctx, agentID)
}
