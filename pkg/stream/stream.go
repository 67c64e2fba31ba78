// Package stream implements the Subscription Stream (C3): a lazy,
// possibly-infinite sequence of one agent's events for one reader,
// built by pulling from the durable Event Buffer on an adaptive poll
// cadence rather than receiving pushes from the broadcaster.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/events"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/store"
)

// pollInterval is the adaptive poll cadence: fast while events are
// actively arriving, backed off once polls start coming up empty.
const (
	pollIntervalFast = time.Second
	pollIntervalSlow = 5 * time.Second

	// emptyPollsBeforeBackoff is the number of consecutive empty polls
	// tolerated at the fast interval before switching to the slow one.
	emptyPollsBeforeBackoff = 5
)

// Item is one element a Stream yields: either an event or a terminal
// error. Exactly one of Event/Err is set.
type Item struct {
	Event domain.BufferedEvent
	Err   error
}

// Stream produces Items for one reader of one agent's event buffer onto
// a channel, honouring the algorithm: replay the buffered tail, switch
// to a poll loop with a live subscriber row, and stop on Done, context
// cancellation, or explicit Close.
type Stream struct {
	store    store.Store
	registry *events.Registry

	agentID      string
	subscriberID string

	heartbeatTimeoutSeconds int

	cancel context.CancelFunc
	done   chan struct{}
}

// Open begins streaming agentID's events from fromSequence onward on
// the returned channel, which is closed once the stream terminates.
// heartbeatTimeoutSeconds governs this subscriber's own liveness window
// (not the replay buffer size, which the broadcaster owns).
func Open(ctx context.Context, st store.Store, reg *events.Registry, agentID string, fromSequence int64, heartbeatTimeoutSeconds int) (*Stream, <-chan Item) {
	if heartbeatTimeoutSeconds <= 0 {
		heartbeatTimeoutSeconds = domain.DefaultHeartbeatTimeoutSeconds
	}
	runCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		store:                   st,
		registry:                reg,
		agentID:                 agentID,
		heartbeatTimeoutSeconds: heartbeatTimeoutSeconds,
		cancel:                  cancel,
		done:                    make(chan struct{}),
	}

	out := make(chan Item, 16)
	go s.run(runCtx, out, fromSequence)
	return s, out
}

// Close cancels the stream; the subscriber row is removed (best effort)
// before the output channel closes.
func (s *Stream) Close() {
	s.cancel()
	<-s.done
}

func (s *Stream) run(ctx context.Context, out chan<- Item, fromSequence int64) {
	defer close(out)
	defer close(s.done)

	hw := fromSequence - 1
	if hw < 0 {
		hw = 0
	}

	done, err := s.registry.LastIsDone(ctx, s.agentID)
	if err != nil {
		out <- Item{Err: fmt.Errorf("check done-terminality: %w", err)}
		return
	}
	if done {
		evs, err := s.store.EventsFrom(ctx, s.agentID, fromSequence)
		if err != nil {
			out <- Item{Err: fmt.Errorf("read final events: %w", err)}
			return
		}
		for _, e := range evs {
			if !yield(ctx, out, e) {
				return
			}
		}
		return
	}

	evs, err := s.store.EventsFrom(ctx, s.agentID, fromSequence)
	if err != nil {
		out <- Item{Err: fmt.Errorf("read buffered events: %w", err)}
		return
	}
	for _, e := range evs {
		if !yield(ctx, out, e) {
			return
		}
		hw = e.Sequence
		if e.Event.IsDone() {
			return
		}
	}

	s.subscriberID = uuid.NewString()
	sub := &domain.Subscriber{
		ID: s.subscriberID, AgentID: s.agentID,
		CreatedAt: time.Now(), LastActivity: time.Now(),
		IsActive: true, HeartbeatTimeoutSeconds: s.heartbeatTimeoutSeconds,
	}
	if err := s.store.CreateSubscriber(ctx, sub); err != nil {
		out <- Item{Err: fmt.Errorf("register subscriber: %w", err)}
		return
	}
	defer func() {
		if err := s.store.DeleteSubscriber(context.Background(), s.subscriberID); err != nil {
			slog.Warn("failed to delete subscriber on stream exit", "agent_id", s.agentID, "subscriber_id", s.subscriberID, "error", err)
		}
	}()

	s.poll(ctx, out, hw)
}

// poll implements the loop step of the algorithm: wait for either the
// local wake signal or the current poll interval, then fetch anything
// newer than hw, yielding it in order and refreshing last_activity.
func (s *Stream) poll(ctx context.Context, out chan<- Item, hw int64) {
	emptyPolls := 0
	b := &backoff.ExponentialBackOff{
		InitialInterval:     pollIntervalFast,
		MaxInterval:         pollIntervalSlow,
		Multiplier:          2,
		RandomizationFactor: 0,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	for {
		wake := s.registry.Wake(s.agentID)
		interval := pollIntervalFast
		if emptyPolls >= emptyPollsBeforeBackoff {
			interval = pollIntervalSlow
		}

		select {
		case <-ctx.Done():
			return
		case <-wake:
		case <-time.After(interval):
		}

		evs, err := s.store.EventsFrom(ctx, s.agentID, hw+1)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sleep := b.NextBackOff()
			if sleep == backoff.Stop {
				sleep = pollIntervalSlow
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleep):
			}
			continue
		}
		b.Reset()

		if err := s.store.TouchSubscriber(ctx, s.subscriberID, time.Now()); err != nil {
			slog.Warn("failed to refresh subscriber heartbeat", "agent_id", s.agentID, "subscriber_id", s.subscriberID, "error", err)
		}

		if len(evs) == 0 {
			emptyPolls++
			continue
		}
		emptyPolls = 0

		for _, e := range evs {
			if !yield(ctx, out, e) {
				return
			}
			hw = e.Sequence
			if e.Event.IsDone() {
				return
			}
		}
	}
}

// yield sends item on out, returning false if ctx was cancelled first.
func yield(ctx context.Context, out chan<- Item, e domain.BufferedEvent) bool {
	select {
	case out <- Item{Event: e}:
		return true
	case <-ctx.Done():
		return false
	}
}
