package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/stream"
)

// handleWebSocketEvents upgrades GET /api/v1/agents/:id/ws to a
// WebSocket connection and forwards the same buffered-event stream
// handleStreamEvents sends over SSE, one JSON text frame per event, for
// browser clients that prefer WS to SSE.
func (s *Server) handleWebSocketEvents(c *gin.Context) {
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

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// Origin validation deferred: the front door this API sits behind
		// is expected to enforce it. See pkg/api's DESIGN.md note.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("websocket upgrade failed", "agent_id", agentID, "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := c.Request.Context()
	st, items := stream.Open(ctx, s.store, s.events, agentID, fromSequence, s.eventCfg.HeartbeatTimeoutSeconds)
	defer st.Close()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case item, ok := <-items:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if item.Err != nil {
				slog.Error("event stream terminated", "agent_id", agentID, "error", item.Err)
				_ = conn.Close(websocket.StatusInternalError, "stream error")
				return
			}

			for _, rec := range toSSERecords(item.Event) {
				payload, err := json.Marshal(wsFrame{Type: rec.discriminator, eventPayload: rec.payload})
				if err != nil {
					slog.Error("failed to marshal streamed event", "agent_id", agentID, "error", err)
					continue
				}
				if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
					return
				}
			}
			if item.Event.Event.IsDone() {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}
}
