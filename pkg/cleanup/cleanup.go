// Package cleanup runs the runtime's periodic and startup maintenance
// sweeps: expiring stale subscription-stream subscribers, and recovering
// agents a prior process left recorded as running when it exited without
// its supervisor task ever marking them stopped.
package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/config"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/events"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/store"
)

// Rehydrator is the subset of *runtime.Runtime the Cleaner depends on.
// Kept as an interface so this package does not import pkg/runtime (which
// would create an import cycle once pkg/runtime wants to start a Cleaner
// alongside it).
type Rehydrator interface {
	IsLive(agentID string) bool
	LoadFromRepository(ctx context.Context, agentID string) (*domain.Agent, error)
}

// Cleaner owns the two background sweeps. All pods (or, in this
// single-process deployment, all copies of the server) run it
// independently; every operation it performs is idempotent.
type Cleaner struct {
	store  store.Store
	rt     Rehydrator
	events *events.Registry
	cfg    *config.EventConfig

	orphanInterval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu                sync.Mutex
	lastSweep         time.Time
	lastOrphanScan    time.Time
	subscribersReaped int
	orphansRecovered  int
}

// New builds a Cleaner. orphanInterval is how often CleanupOrphans runs as
// a background sweep (separate from the one-shot startup pass).
func New(st store.Store, rt Rehydrator, reg *events.Registry, cfg *config.EventConfig, orphanInterval time.Duration) *Cleaner {
	return &Cleaner{
		store:          st,
		rt:             rt,
		events:         reg,
		cfg:            cfg,
		orphanInterval: orphanInterval,
		stopCh:         make(chan struct{}),
	}
}

// Start launches the subscriber-sweep and orphan-scan loops in their own
// goroutines.
func (c *Cleaner) Start(ctx context.Context) {
	c.wg.Add(2)
	go c.runSubscriberSweep(ctx)
	go c.runOrphanScan(ctx)
}

// Stop signals both loops to exit and waits for them. Safe to call more
// than once.
func (c *Cleaner) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Cleaner) runSubscriberSweep(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.SubscriberSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			n, err := c.store.SweepExpiredSubscribers(ctx, time.Now())
			if err != nil {
				slog.Error("subscriber sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired subscribers reaped", "count", n)
			}
			c.mu.Lock()
			c.lastSweep = time.Now()
			c.subscribersReaped += n
			c.mu.Unlock()
		}
	}
}

func (c *Cleaner) runOrphanScan(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.orphanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			n, err := c.CleanupOrphans(ctx)
			if err != nil {
				slog.Error("orphan scan failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Warn("orphaned agents recovered", "count", n)
			}
		}
	}
}

// CleanupOrphans finds every AgentContext persisted with
// AgentStatusRunning that has no live in-memory runningAgent and
// rehydrates it (fresh sandbox, fresh supervisor task). It is safe to call
// this both once at startup (before the server begins accepting requests)
// and repeatedly as a background sweep: an agent already live is skipped.
//
// Rehydration always restarts the super-flow at Idle and replans from
// scratch (the in-memory turn state a prior process was mid-way through
// is gone), so the event buffer's record of that crashed, never-completed
// turn no longer corresponds to anything the recovered agent will actually
// do. Before rehydrating, the buffer is cleared (C1 clear(); sequence
// numbering is left intact, only the stale events are dropped) so a
// subscriber resuming a stream doesn't see events from a turn that never
// finished sitting ahead of the fresh one that replaces it.
func (c *Cleaner) CleanupOrphans(ctx context.Context) (int, error) {
	running, err := c.store.ListContextsByStatus(ctx, domain.AgentStatusRunning)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, ac := range running {
		if c.rt.IsLive(ac.AgentID) {
			continue
		}
		if c.events != nil {
			if err := c.events.Clear(ctx, ac.AgentID); err != nil {
				slog.Error("failed to clear stale events for orphaned agent", "agent_id", ac.AgentID, "error", err)
				continue
			}
		}
		if _, err := c.rt.LoadFromRepository(ctx, ac.AgentID); err != nil {
			slog.Error("failed to recover orphaned agent", "agent_id", ac.AgentID, "error", err)
			continue
		}
		slog.Warn("orphaned agent recovered", "agent_id", ac.AgentID)
		recovered++
	}

	c.mu.Lock()
	c.lastOrphanScan = time.Now()
	c.orphansRecovered += recovered
	c.mu.Unlock()

	return recovered, nil
}

// Stats reports cumulative sweep counters, useful for health/status
// endpoints.
type Stats struct {
	LastSweep         time.Time
	LastOrphanScan    time.Time
	SubscribersReaped int
	OrphansRecovered  int
}

func (c *Cleaner) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		LastSweep:         c.lastSweep,
		LastOrphanScan:    c.lastOrphanScan,
		SubscribersReaped: c.subscribersReaped,
		OrphansRecovered:  c.orphansRecovered,
	}
}
