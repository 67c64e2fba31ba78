package domain

import "time"

// Broadcaster is the persisted scalar state of a per-agent broadcaster:
// the sequence counter and the replay window size. The in-memory object
// that wraps this also owns the Event Buffer; events themselves are
// persisted separately as BufferedEvents.
type Broadcaster struct {
	AgentID         string
	CurrentSequence int64
	MaxBufferSize   int
	UpdatedAt       time.Time
}

// DefaultMaxBufferSize is the default replay window size for a new
// broadcaster.
const DefaultMaxBufferSize = 100

// Subscriber is a persisted record marking one reader's interest in an
// agent's events. Its liveness is the only persisted fact; per-process
// delivery state (the high-water-mark, poll goroutine) is ephemeral.
type Subscriber struct {
	ID                     string
	AgentID                string
	CreatedAt              time.Time
	LastActivity           time.Time
	IsActive               bool
	HeartbeatTimeoutSeconds int
}

// DefaultHeartbeatTimeoutSeconds is the default subscriber liveness
// timeout.
const DefaultHeartbeatTimeoutSeconds = 300

// Expired reports whether this subscriber's heartbeat has lapsed as of
// `now`.
func (s Subscriber) Expired(now time.Time) bool {
	timeout := s.HeartbeatTimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeoutSeconds
	}
	return now.Sub(s.LastActivity) > time.Duration(timeout)*time.Second
}
