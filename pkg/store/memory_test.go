package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
)

func TestMemoryAppendAssignsDenseSequences(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Unix(1000, 0)

	for i := 0; i < 5; i++ {
		seq, err := s.Append(ctx, "agent-1", domain.NewMessage("hi"), now, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq)
	}

	events, err := s.EventsFrom(ctx, "agent-1", 1)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Sequence)
	}
}

func TestMemoryBufferOverflowEvicts(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Unix(1000, 0)

	for i := 0; i < 7; i++ {
		_, err := s.Append(ctx, "agent-1", domain.NewMessage("hi"), now, 5)
		require.NoError(t, err)
	}

	events, err := s.EventsFrom(ctx, "agent-1", 1)
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, int64(3), events[0].Sequence)
	assert.Equal(t, int64(7), events[len(events)-1].Sequence)

	events, err = s.EventsFrom(ctx, "agent-1", 6)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(6), events[0].Sequence)
	assert.Equal(t, int64(7), events[1].Sequence)
}

func TestMemoryLastIsDone(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Unix(1000, 0)

	done, err := s.LastIsDone(ctx, "agent-1")
	require.NoError(t, err)
	assert.False(t, done)

	_, err = s.Append(ctx, "agent-1", domain.NewMessage("hi"), now, 100)
	require.NoError(t, err)
	done, err = s.LastIsDone(ctx, "agent-1")
	require.NoError(t, err)
	assert.False(t, done)

	_, err = s.Append(ctx, "agent-1", domain.NewDone(), now, 100)
	require.NoError(t, err)
	done, err = s.LastIsDone(ctx, "agent-1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestMemorySubscriberSweepExpiry(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	created := time.Unix(1000, 0)

	sub := &domain.Subscriber{
		ID: "sub-1", AgentID: "agent-1", CreatedAt: created, LastActivity: created,
		IsActive: true, HeartbeatTimeoutSeconds: 30,
	}
	require.NoError(t, s.CreateSubscriber(ctx, sub))

	count, err := s.SweepExpiredSubscribers(ctx, created.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = s.SweepExpiredSubscribers(ctx, created.Add(60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryDeleteBroadcasterCascades(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Unix(1000, 0)

	_, err := s.Append(ctx, "agent-1", domain.NewMessage("hi"), now, 100)
	require.NoError(t, err)

	require.NoError(t, s.DeleteBroadcaster(ctx, "agent-1"))

	events, err := s.EventsFrom(ctx, "agent-1", 1)
	require.NoError(t, err)
	assert.Empty(t, events)
}
