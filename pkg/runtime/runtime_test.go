package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/browser"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/config"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/events"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/llm"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/masking"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/sandbox"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/search"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/store"
)

func testRuntime(responses ...llm.Response) (*Runtime, store.Store) {
	st := store.NewMemory()
	reg := events.NewRegistry(st)
	rt := New(
		st,
		reg,
		sandbox.NewMemoryFactory(),
		browser.NewMemoryFactory(),
		llm.NewStubClient(responses...),
		search.NewStubEngine(),
		masking.NewService(*config.DefaultMaskingConfig()),
		config.DefaultRuntimeConfig(),
		config.DefaultEventConfig(),
	)
	return rt, st
}

func TestCreateAgentPersistsRunningContext(t *testing.T) {
	rt, st := testRuntime(llm.Response{Type: llm.ResponseTypeText, Content: `{"title":"t","steps":[]}`})

	agent, err := rt.CreateAgent(context.Background(), CreateConfig{UserID: "u1", Flow: domain.FlowKindDefault})
	require.NoError(t, err)
	require.NotEmpty(t, agent.ID)

	ac, err := st.GetContext(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusRunning, ac.Status)
}

func TestCreateAgentRejectsUnknownFlowKind(t *testing.T) {
	rt, _ := testRuntime()
	_, err := rt.CreateAgent(context.Background(), CreateConfig{UserID: "u1", Flow: "bogus"})
	require.Error(t, err)
}

func TestSendMessageSuppressesExactDuplicate(t *testing.T) {
	rt, st := testRuntime(
		llm.Response{Type: llm.ResponseTypeText, Content: `{"title":"t","steps":[]}`},
		llm.Response{Type: llm.ResponseTypeText, Content: `no further steps`},
	)

	agent, err := rt.CreateAgent(context.Background(), CreateConfig{UserID: "u1", Flow: domain.FlowKindDefault})
	require.NoError(t, err)

	ts := time.Now()
	require.NoError(t, rt.SendMessage(context.Background(), agent.ID, "hello", ts, nil))
	require.NoError(t, rt.SendMessage(context.Background(), agent.ID, "hello", ts, nil))

	// Notify happens synchronously inside SendMessage, before the message
	// is ever handed to the supervisor, so this count is race-free
	// regardless of how fast the supervisor drains the queue.
	evs, err := st.EventsFrom(context.Background(), agent.ID, 1)
	require.NoError(t, err)
	userInputs := 0
	for _, e := range evs {
		if e.Event.Kind == domain.EventKindUserInput {
			userInputs++
		}
	}
	assert.Equal(t, 1, userInputs, "the duplicate send must not buffer a second UserInput event")
}

func TestSendMessageRedactsSecretsBeforeBuffering(t *testing.T) {
	rt, st := testRuntime(
		llm.Response{Type: llm.ResponseTypeText, Content: `{"title":"t","steps":[]}`},
		llm.Response{Type: llm.ResponseTypeText, Content: `no further steps`},
	)

	agent, err := rt.CreateAgent(context.Background(), CreateConfig{UserID: "u1", Flow: domain.FlowKindDefault})
	require.NoError(t, err)

	secret := `api_key: "abcdefghijklmnopqrstuvwxyz123456"`
	require.NoError(t, rt.SendMessage(context.Background(), agent.ID, secret, time.Now(), nil))

	evs, err := st.EventsFrom(context.Background(), agent.ID, 1)
	require.NoError(t, err)
	for _, e := range evs {
		if e.Event.Kind == domain.EventKindUserInput {
			assert.Contains(t, e.Event.Text, "[MASKED_API_KEY]")
			assert.NotContains(t, e.Event.Text, "abcdefghijklmnopqrstuvwxyz123456")
		}
	}
}

func TestDestroyAgentIsIdempotent(t *testing.T) {
	rt, _ := testRuntime()
	require.NoError(t, rt.DestroyAgent(context.Background(), "never-created"))
}

func TestDestroyAgentRemovesContext(t *testing.T) {
	rt, st := testRuntime(llm.Response{Type: llm.ResponseTypeText, Content: `{"title":"t","steps":[]}`})

	agent, err := rt.CreateAgent(context.Background(), CreateConfig{UserID: "u1", Flow: domain.FlowKindDefault})
	require.NoError(t, err)

	require.NoError(t, rt.DestroyAgent(context.Background(), agent.ID))

	_, err = st.GetContext(context.Background(), agent.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoadFromRepositoryRehydratesAndSendMessageRuns(t *testing.T) {
	rt, st := testRuntime(
		llm.Response{Type: llm.ResponseTypeText, Content: `{"title":"t","steps":[]}`},
		llm.Response{Type: llm.ResponseTypeText, Content: `Final report.`},
	)

	agent, err := rt.CreateAgent(context.Background(), CreateConfig{UserID: "u1", Flow: domain.FlowKindDefault})
	require.NoError(t, err)

	// Simulate a process restart: drop the in-memory entry but keep the
	// persisted context, then rely on send_message's rehydration path.
	rt.mu.Lock()
	delete(rt.agents, agent.ID)
	rt.mu.Unlock()

	require.NoError(t, rt.SendMessage(context.Background(), agent.ID, "hello again", time.Now(), nil))

	ac, err := st.GetContext(context.Background(), agent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusRunning, ac.Status)
}
