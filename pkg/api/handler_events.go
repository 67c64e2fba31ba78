package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/stream"
)

// toolEventWhitelist names the only tools whose ToolCalling/ToolCalled
// events reach the dashboard as "tool" SSE records; everything else is
// internal plumbing the dashboard has no use for.
var toolEventWhitelist = []string{
	"browser", "file", "shell", "message", "audio", "image", "video", "reasoning", "search",
}

// eventPayload is the JSON shape sent over the wire for one SSE record.
// A single domain.BufferedEvent can expand into several of these: the
// mapping from domain.AgentEvent to wire discriminator is many-to-one,
// not 1:1.
type eventPayload struct {
	Sequence int64            `json:"sequence"`
	Kind     domain.EventKind `json:"kind"`
	Text     string           `json:"text,omitempty"`
	Tool     string           `json:"tool,omitempty"`
	Function string           `json:"function,omitempty"`
	Args     string           `json:"args,omitempty"`
	Result   string           `json:"result,omitempty"`
	Plan     *domain.Plan     `json:"plan,omitempty"`
	Step     *domain.Step     `json:"step,omitempty"`
	FileIDs  []string         `json:"file_ids,omitempty"`
}

// sseRecord pairs a wire discriminator with the payload sent under it.
type sseRecord struct {
	discriminator string
	payload       eventPayload
}

// wsFrame is the JSON text frame shape handler_ws.go sends for one
// sseRecord: the same discriminator SSE sends as the "event" name,
// carried here as an explicit "type" field since a WebSocket text
// message has no separate event-name slot to put it in.
type wsFrame struct {
	Type string `json:"type"`
	eventPayload
}

// toSSERecords expands one buffered domain event into zero or more SSE
// records. PlanCreated fans out into up to three records (title, message,
// plan); a completed or failed step fans out into two (step, message);
// tool events are dropped unless the tool is on toolEventWhitelist;
// everything else maps straight through under its own kind.
func toSSERecords(be domain.BufferedEvent) []sseRecord {
	e := be.Event
	base := eventPayload{
		Sequence: be.Sequence,
		Kind:     e.Kind,
		Text:     e.Text,
		Tool:     e.Tool,
		Function: e.Function,
		Args:     e.Args,
		Result:   e.ToolResult,
		Plan:     e.Plan,
		Step:     e.Step,
		FileIDs:  e.FileIDs,
	}

	switch e.Kind {
	case domain.EventKindPlanCreated:
		var out []sseRecord
		if e.Plan != nil && e.Plan.Title != "" {
			out = append(out, sseRecord{"title", withText(base, e.Plan.Title)})
		}
		out = append(out, sseRecord{"message", base})
		out = append(out, sseRecord{"plan", base})
		return out

	case domain.EventKindPlanUpdated, domain.EventKindPlanCompleted:
		return []sseRecord{{"plan", base}}

	case domain.EventKindStepStarted:
		return []sseRecord{{"step", base}}

	case domain.EventKindStepCompleted, domain.EventKindStepFailed:
		out := []sseRecord{{"step", base}}
		if e.Step != nil && e.Step.Result != "" {
			out = append(out, sseRecord{"message", withText(base, e.Step.Result)})
		}
		return out

	case domain.EventKindToolCalling, domain.EventKindToolCalled:
		if !slices.Contains(toolEventWhitelist, e.Tool) {
			return nil
		}
		return []sseRecord{{"tool", base}}

	case domain.EventKindMessage:
		return []sseRecord{{"message", base}}

	case domain.EventKindReport:
		return []sseRecord{{"message", base}}

	case domain.EventKindUserInput:
		return []sseRecord{{"user_input", base}}

	case domain.EventKindError:
		return []sseRecord{{"error", base}}

	case domain.EventKindPause:
		return []sseRecord{{"pause", base}}

	case domain.EventKindDone:
		return []sseRecord{{"done", base}}

	default:
		return []sseRecord{{string(e.Kind), base}}
	}
}

func withText(p eventPayload, text string) eventPayload {
	p.Text = text
	return p
}

// handleStreamEvents serves GET /api/v1/agents/:id/events?from_sequence=N
// as a text/event-stream. Each buffered event is sent as one SSE "event"
// message; the stream ends (connection closed) once a Done event is
// forwarded or the client disconnects.
func (s *Server) handleStreamEvents(c *gin.Context) {
	agentID := c.Param("id")

	fromSequence := int64(0)
	if raw := c.Query("from_sequence"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from_sequence"})
			return
		}
		fromSequence = v
	}

	heartbeat := s.eventCfg.HeartbeatTimeoutSeconds
	st, items := stream.Open(c.Request.Context(), s.store, s.events, agentID, fromSequence, heartbeat)
	defer st.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		item, ok := <-items
		if !ok {
			return false
		}
		if item.Err != nil {
			slog.Error("event stream terminated", "agent_id", agentID, "error", item.Err)
			return false
		}

		for _, rec := range toSSERecords(item.Event) {
			payload, err := json.Marshal(rec.payload)
			if err != nil {
				slog.Error("failed to marshal streamed event", "agent_id", agentID, "error", err)
				return false
			}
			c.SSEvent(rec.discriminator, json.RawMessage(payload))
		}
		return !item.Event.Event.IsDone()
	})
}
