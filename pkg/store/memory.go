package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
)

// Memory is an in-process Store backed by maps, used for unit tests that
// exercise C1/C2/C3/C5 without a running PostgreSQL instance. It honours
// the same atomicity contract as Postgres (Append is one critical
// section per agent) via a single package-wide mutex: acceptable for a
// test double, not a substitute for Postgres's per-row locking.
type Memory struct {
	mu            sync.Mutex
	contexts      map[string]domain.AgentContext
	conversations map[string]bool
	broadcasters  map[string]domain.Broadcaster
	events        map[string][]domain.BufferedEvent
	subscribers   map[string]domain.Subscriber
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		contexts:      make(map[string]domain.AgentContext),
		conversations: make(map[string]bool),
		broadcasters:  make(map[string]domain.Broadcaster),
		events:        make(map[string][]domain.BufferedEvent),
		subscribers:   make(map[string]domain.Subscriber),
	}
}

func (m *Memory) GetContext(_ context.Context, agentID string) (*domain.AgentContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ac, ok := m.contexts[agentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ac, nil
}

func (m *Memory) UpsertContext(_ context.Context, ac *domain.AgentContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[ac.AgentID] = *ac
	return nil
}

func (m *Memory) DeleteContext(_ context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contexts, agentID)
	return nil
}

func (m *Memory) ListContextsByStatus(_ context.Context, status domain.AgentStatus) ([]*domain.AgentContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AgentContext
	for _, ac := range m.contexts {
		if ac.Status == status {
			cp := ac
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

func (m *Memory) UpsertConversation(_ context.Context, agentID, _, _, _ string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conversations[agentID] {
		return nil
	}
	m.conversations[agentID] = true
	return nil
}

func (m *Memory) GetOrCreateBroadcaster(_ context.Context, agentID string, maxBufferSize int, now time.Time) (*domain.Broadcaster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.broadcasters[agentID]
	if !ok {
		b = domain.Broadcaster{AgentID: agentID, MaxBufferSize: maxBufferSize, UpdatedAt: now}
		m.broadcasters[agentID] = b
	}
	return &b, nil
}

func (m *Memory) Append(_ context.Context, agentID string, event domain.AgentEvent, now time.Time, maxBufferSize int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.broadcasters[agentID]
	if !ok {
		b = domain.Broadcaster{AgentID: agentID, MaxBufferSize: maxBufferSize}
	}
	sequence := b.CurrentSequence + 1
	b.CurrentSequence = sequence
	b.MaxBufferSize = maxBufferSize
	b.UpdatedAt = now
	m.broadcasters[agentID] = b

	m.events[agentID] = append(m.events[agentID], domain.BufferedEvent{
		AgentID: agentID, Sequence: sequence, Event: event, Timestamp: now,
	})

	floor := sequence - int64(maxBufferSize)
	evs := m.events[agentID]
	kept := evs[:0]
	for _, e := range evs {
		if e.Sequence > floor {
			kept = append(kept, e)
		}
	}
	m.events[agentID] = kept

	return sequence, nil
}

func (m *Memory) EventsFrom(_ context.Context, agentID string, fromSequence int64) ([]domain.BufferedEvent, error) {
	if fromSequence <= 0 {
		fromSequence = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.BufferedEvent
	for _, e := range m.events[agentID] {
		if e.Sequence >= fromSequence {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (m *Memory) LastIsDone(_ context.Context, agentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.events[agentID]
	if len(evs) == 0 {
		return false, nil
	}
	return evs[len(evs)-1].Event.IsDone(), nil
}

func (m *Memory) ClearEvents(_ context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, agentID)
	return nil
}

func (m *Memory) DeleteBroadcaster(_ context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.broadcasters, agentID)
	delete(m.events, agentID)
	return nil
}

func (m *Memory) CreateSubscriber(_ context.Context, sub *domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[sub.ID] = *sub
	return nil
}

func (m *Memory) TouchSubscriber(_ context.Context, subscriberID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subscribers[subscriberID]
	if !ok {
		return nil
	}
	sub.LastActivity = now
	m.subscribers[subscriberID] = sub
	return nil
}

func (m *Memory) DeleteSubscriber(_ context.Context, subscriberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, subscriberID)
	return nil
}

func (m *Memory) SweepExpiredSubscribers(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for id, sub := range m.subscribers {
		if sub.IsActive && sub.Expired(now) {
			sub.IsActive = false
			m.subscribers[id] = sub
			count++
		}
	}
	return count, nil
}

var _ Store = (*Memory)(nil)
