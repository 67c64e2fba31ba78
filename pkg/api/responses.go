package api

import "time"

// AgentResponse is returned by POST /api/v1/agents and GET /api/v1/agents/:id.
type AgentResponse struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Flow   string `json:"flow"`
	Status string `json:"status"`
}

// MessageAcceptedResponse is returned by POST /api/v1/agents/:id/messages.
type MessageAcceptedResponse struct {
	Accepted bool `json:"accepted"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatsResponse is returned by GET /api/v1/system/stats.
type StatsResponse struct {
	SubscribersReaped int       `json:"subscribers_reaped"`
	OrphansRecovered  int       `json:"orphans_recovered"`
	LastSweep         time.Time `json:"last_sweep"`
	LastOrphanScan    time.Time `json:"last_orphan_scan"`
}
