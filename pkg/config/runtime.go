package config

import "time"

// RuntimeConfig controls the Agent Runtime supervisor loop, adapted from
// a shared worker pool to one supervisor per running agent.
type RuntimeConfig struct {
	// WorkQueueDrainTimeout bounds how long the supervisor's queue read
	// blocks before re-checking cancellation.
	WorkQueueDrainTimeout time.Duration `yaml:"work_queue_drain_timeout"`

	// LLMCallTimeout / SandboxCallTimeout are the default collaborator
	// timeouts.
	LLMCallTimeout     time.Duration `yaml:"llm_call_timeout"`
	SandboxCallTimeout time.Duration `yaml:"sandbox_call_timeout"`

	// SupervisorRestartBackoff is the minimum gap between a died
	// supervisor being observed and restarted by send_message's "ensure
	// task" check.
	SupervisorRestartBackoff time.Duration `yaml:"supervisor_restart_backoff"`
}

// DefaultRuntimeConfig returns the built-in runtime defaults.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		WorkQueueDrainTimeout:    1 * time.Second,
		LLMCallTimeout:           600 * time.Second,
		SandboxCallTimeout:       10 * time.Second,
		SupervisorRestartBackoff: 100 * time.Millisecond,
	}
}

// EventConfig controls the Event Buffer / Broadcaster Registry / Subscription
// Stream.
type EventConfig struct {
	// MaxBufferSize is the default replay window size for new broadcasters.
	MaxBufferSize int `yaml:"max_buffer_size"`

	// PollIntervalFast is the subscription stream's initial poll interval.
	PollIntervalFast time.Duration `yaml:"poll_interval_fast"`

	// PollIntervalSlow is the backed-off poll interval after
	// PollBackoffThreshold consecutive empty polls.
	PollIntervalSlow time.Duration `yaml:"poll_interval_slow"`

	// PollBackoffThreshold is the number of consecutive empty polls
	// before backing off from PollIntervalFast to PollIntervalSlow.
	PollBackoffThreshold int `yaml:"poll_backoff_threshold"`

	// SubscriberSweepInterval is how often the expiry sweep scans active
	// subscribers.
	SubscriberSweepInterval time.Duration `yaml:"subscriber_sweep_interval"`

	// HeartbeatTimeoutSeconds is the default subscriber liveness timeout.
	HeartbeatTimeoutSeconds int `yaml:"heartbeat_timeout_seconds"`
}

// DefaultEventConfig returns the built-in event-subsystem defaults.
func DefaultEventConfig() *EventConfig {
	return &EventConfig{
		MaxBufferSize:           100,
		PollIntervalFast:        1 * time.Second,
		PollIntervalSlow:        5 * time.Second,
		PollBackoffThreshold:    5,
		SubscriberSweepInterval: 30 * time.Second,
		HeartbeatTimeoutSeconds: 300,
	}
}

// FlowConfig controls the hierarchical Flow Engine.
type FlowConfig struct {
	// MaxSearchIterations bounds the search sub-flow's gap→search→score→
	// reflect loop.
	MaxSearchIterations int `yaml:"max_search_iterations"`

	// MaxParallelSteps bounds how many steps in one parallel group may
	// run concurrently.
	MaxParallelSteps int `yaml:"max_parallel_steps"`
}

// DefaultFlowConfig returns the built-in flow-engine defaults.
func DefaultFlowConfig() *FlowConfig {
	return &FlowConfig{
		MaxSearchIterations: 3,
		MaxParallelSteps:    8,
	}
}
