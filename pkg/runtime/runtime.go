// Package runtime implements the Agent Runtime (C5): agent lifecycle,
// per-agent work queue, supervisor task, context persistence, and
// dispatch into the Flow Engine.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/browser"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/config"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/events"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/flow"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/llm"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/masking"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/sandbox"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/search"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/store"
)

// CreateConfig describes a new agent at creation time.
type CreateConfig struct {
	UserID      string
	Flow        domain.FlowKind
	Model       domain.ModelConfig
	Environment map[string]string
}

// runningAgent is the in-memory structure backing one live agent: its
// domain context, wired Flow Engine instance, sandbox reference, work
// queue, and supervisor task handle.
type runningAgent struct {
	mu sync.Mutex

	ctx     *domain.AgentContext
	agent   *domain.Agent
	sandbox *sandbox.Sandbox
	super   *flow.SuperFlow

	workQueue chan domain.MemoryEntry
	cancel    context.CancelFunc
	done      chan struct{}
}

// Runtime is the Agent Runtime: the top-level map of live agents plus
// everything needed to build or rehydrate one.
type Runtime struct {
	store          store.Store
	events         *events.Registry
	sandboxFactory sandbox.Factory
	browserFactory browser.Factory
	llmClient      llm.Client
	searchEngine   search.Engine
	masker         *masking.Service
	cfg            *config.RuntimeConfig
	eventCfg       *config.EventConfig

	mu     sync.Mutex
	agents map[string]*runningAgent
}

// New builds a Runtime wired to its collaborators. llmClient and
// searchEngine are shared across every agent (they are stateless,
// network-facing clients); sandboxFactory and browserFactory mint a
// fresh, exclusively-owned instance per agent. masker may be nil, in
// which case memories and event payloads pass through unredacted.
func New(
	st store.Store,
	reg *events.Registry,
	sandboxFactory sandbox.Factory,
	browserFactory browser.Factory,
	llmClient llm.Client,
	searchEngine search.Engine,
	masker *masking.Service,
	cfg *config.RuntimeConfig,
	eventCfg *config.EventConfig,
) *Runtime {
	return &Runtime{
		store:          st,
		events:         reg,
		sandboxFactory: sandboxFactory,
		browserFactory: browserFactory,
		llmClient:      llmClient,
		searchEngine:   searchEngine,
		masker:         masker,
		cfg:            cfg,
		eventCfg:       eventCfg,
		agents:         make(map[string]*runningAgent),
	}
}

// CreateAgent generates an id, builds memories and a sandbox, persists
// the context, starts the supervisor task, and returns the live Agent.
func (r *Runtime) CreateAgent(ctx context.Context, cc CreateConfig) (*domain.Agent, error) {
	if !validFlowKind(cc.Flow) {
		return nil, fmt.Errorf("create agent: %w: %q", domain.ErrInvalidFlow, cc.Flow)
	}

	agentID := uuid.NewString()
	now := time.Now()

	agent := &domain.Agent{
		ID:          agentID,
		UserID:      cc.UserID,
		Flow:        cc.Flow,
		Model:       cc.Model,
		Environment: cc.Environment,
	}

	sb, err := r.sandboxFactory.GetOrCreate(ctx, agentID, cc.UserID, cc.Environment)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w: %v", domain.ErrSandboxUnavailable, err)
	}

	ac := &domain.AgentContext{
		AgentID:   agentID,
		Agent:     *agent,
		FlowKind:  cc.Flow,
		SandboxID: sb.ID,
		Status:    domain.AgentStatusCreated,
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.UpsertContext(ctx, ac); err != nil {
		return nil, fmt.Errorf("create agent: %w: %v", domain.ErrStorageError, err)
	}

	ra := r.start(agent, ac, sb)

	ac.Status = domain.AgentStatusRunning
	ac.UpdatedAt = time.Now()
	if err := r.store.UpsertContext(ctx, ac); err != nil {
		return nil, fmt.Errorf("create agent: %w: %v", domain.ErrStorageError, err)
	}

	// Fire-and-forget conversation-history record; agent creation has
	// already succeeded regardless of its outcome.
	go func() {
		_ = r.store.UpsertConversation(context.Background(), agentID, cc.UserID, string(cc.Flow), "", now)
	}()

	r.mu.Lock()
	r.agents[agentID] = ra
	r.mu.Unlock()

	return agent, nil
}

// SendMessage enqueues text for agentID, rehydrating it from the store
// first if it is not currently live. (text, timestamp) duplicate
// suppression matches AgentContext.LastMessage exactly.
func (r *Runtime) SendMessage(ctx context.Context, agentID, text string, timestamp time.Time, fileIDs []string) error {
	ra, err := r.lookupOrRehydrate(ctx, agentID)
	if err != nil {
		return err
	}

	// fileIDs are opaque references minted by the file upload endpoint,
	// an external collaborator this package never talks to directly (see
	// §1 scope: file upload/download endpoints are front-door glue, not
	// core runtime). This layer receives only the id, never the bytes,
	// so there is nothing here to hand to sandbox.FileUpload; the
	// descriptor line is the full extent of what SendMessage can do with
	// it, leaving the actual placement under a sandbox path to whatever
	// called the upload endpoint in the first place.
	for _, fid := range fileIDs {
		text += fmt.Sprintf("\n\n[attached file: %s]", fid)
	}
	if r.masker != nil {
		text = r.masker.Mask(text)
	}

	ra.mu.Lock()
	last := ra.ctx.LastMessage
	if last != nil && last.Equal(domain.LastMessage{Text: text, Timestamp: timestamp}) {
		ra.mu.Unlock()
		return nil
	}
	ra.ctx.LastMessage = &domain.LastMessage{Text: text, Timestamp: timestamp}
	ra.mu.Unlock()

	if _, err := r.events.Notify(ctx, agentID, domain.NewUserInput(text, fileIDs), r.eventCfg.MaxBufferSize); err != nil && !errors.Is(err, events.ErrAlreadyDone) {
		return fmt.Errorf("send message: %w: %v", domain.ErrStorageError, err)
	}

	if err := r.store.UpsertContext(ctx, ra.ctx); err != nil {
		return fmt.Errorf("send message: %w: %v", domain.ErrStorageError, err)
	}

	select {
	case ra.workQueue <- domain.MemoryEntry{Role: domain.RoleUser, Content: text, CreatedAt: timestamp}:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.ensureSupervisorRunning(agentID, ra)
	return nil
}

// DestroyAgent cancels the supervisor task and awaits it, closes the
// sandbox, and deletes the persisted context and broadcaster.
// Destroying a non-existent agent is a no-op success.
func (r *Runtime) DestroyAgent(ctx context.Context, agentID string) error {
	r.mu.Lock()
	ra, ok := r.agents[agentID]
	delete(r.agents, agentID)
	r.mu.Unlock()

	if ok {
		ra.mu.Lock()
		cancel := ra.cancel
		done := ra.done
		sb := ra.sandbox
		ra.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if done != nil {
			<-done
		}
		if sb != nil {
			_ = sb.Close(ctx)
		}
	}

	if err := r.events.Delete(ctx, agentID); err != nil {
		return fmt.Errorf("destroy agent: %w: %v", domain.ErrStorageError, err)
	}
	if err := r.store.DeleteContext(ctx, agentID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("destroy agent: %w: %v", domain.ErrStorageError, err)
	}
	return nil
}

// CloseAll destroys every currently live in-memory agent.
func (r *Runtime) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := r.DestroyAgent(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LoadFromRepository fetches the persisted context for agentID,
// constructs a fresh sandbox and Flow Engine, starts a supervisor task,
// and marks the agent running again.
func (r *Runtime) LoadFromRepository(ctx context.Context, agentID string) (*domain.Agent, error) {
	ac, err := r.store.GetContext(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("load from repository: %w: %v", domain.ErrAgentNotRunning, err)
	}

	sb, err := r.sandboxFactory.GetOrCreate(ctx, agentID, ac.Agent.UserID, ac.Agent.Environment)
	if err != nil {
		return nil, fmt.Errorf("load from repository: %w: %v", domain.ErrSandboxUnavailable, err)
	}

	agent := ac.Agent
	ra := r.start(&agent, ac, sb)

	ac.Status = domain.AgentStatusRunning
	ac.UpdatedAt = time.Now()
	if err := r.store.UpsertContext(ctx, ac); err != nil {
		return nil, fmt.Errorf("load from repository: %w: %v", domain.ErrStorageError, err)
	}

	r.mu.Lock()
	r.agents[agentID] = ra
	r.mu.Unlock()

	return &agent, nil
}

// IsLive reports whether agentID currently has a live in-memory
// runningAgent (as opposed to only a persisted context).
func (r *Runtime) IsLive(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.agents[agentID]
	return ok
}

func (r *Runtime) lookupOrRehydrate(ctx context.Context, agentID string) (*runningAgent, error) {
	r.mu.Lock()
	ra, ok := r.agents[agentID]
	r.mu.Unlock()
	if ok {
		return ra, nil
	}

	if _, err := r.LoadFromRepository(ctx, agentID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	ra = r.agents[agentID]
	r.mu.Unlock()
	return ra, nil
}

// ensureSupervisorRunning restarts the supervisor task for ra if its
// previous run already exited (e.g. crashed on an uncaught error).
func (r *Runtime) ensureSupervisorRunning(agentID string, ra *runningAgent) {
	ra.mu.Lock()
	defer ra.mu.Unlock()

	select {
	case <-ra.done:
		runCtx, cancel := context.WithCancel(context.Background())
		ra.cancel = cancel
		ra.done = make(chan struct{})
		go r.supervise(runCtx, agentID, ra)
	default:
	}
}

// start builds the live runningAgent for agent/ac/sb and launches its
// supervisor task. It does not register the agent in r.agents; callers
// do that once persistence has also succeeded.
func (r *Runtime) start(agent *domain.Agent, ac *domain.AgentContext, sb *sandbox.Sandbox) *runningAgent {
	collab := flow.Collaborators{
		LLM:     r.llmClient,
		Sandbox: sb,
		Search:  r.searchEngine,
		Masker:  r.masker,
	}
	if r.browserFactory != nil {
		if res, err := sb.GetCDPURL(context.Background()); err == nil && res.Success {
			if cdpURL, ok := res.Data.(string); ok {
				if b, err := r.browserFactory.New(context.Background(), cdpURL); err == nil {
					collab.Browser = b
				}
			}
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ra := &runningAgent{
		ctx:       ac,
		agent:     agent,
		sandbox:   sb,
		super:     flow.NewSuperFlow(collab),
		workQueue: make(chan domain.MemoryEntry, 64),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go r.supervise(runCtx, ac.AgentID, ra)
	return ra
}

func validFlowKind(k domain.FlowKind) bool {
	switch k {
	case domain.FlowKindDefault, domain.FlowKindCode, domain.FlowKindSearch, domain.FlowKindReasoning, domain.FlowKindFile:
		return true
	default:
		return false
	}
}
