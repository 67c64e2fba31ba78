package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/runtime"
)

const (
	defaultModelName        = "default"
	defaultModelTemperature = 0.2
	defaultModelMaxTokens   = 4096
)

func (s *Server) handleCreateAgent(c *gin.Context) {
	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	flow := domain.FlowKind(req.Flow)
	if flow == "" {
		flow = domain.FlowKindDefault
	}

	model := domain.ModelConfig{
		Name:        req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if model.Name == "" {
		model.Name = defaultModelName
	}
	if model.MaxTokens == 0 {
		model.MaxTokens = defaultModelMaxTokens
	}

	agent, err := s.runtime.CreateAgent(c.Request.Context(), runtime.CreateConfig{
		UserID:      req.UserID,
		Flow:        flow,
		Model:       model,
		Environment: req.Environment,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, AgentResponse{
		ID:     agent.ID,
		UserID: agent.UserID,
		Flow:   string(agent.Flow),
		Status: string(domain.AgentStatusRunning),
	})
}

func (s *Server) handleGetAgent(c *gin.Context) {
	agentID := c.Param("id")

	ac, err := s.store.GetContext(c.Request.Context(), agentID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, AgentResponse{
		ID:     ac.AgentID,
		UserID: ac.Agent.UserID,
		Flow:   string(ac.FlowKind),
		Status: string(ac.Status),
	})
}

func (s *Server) handleDestroyAgent(c *gin.Context) {
	agentID := c.Param("id")

	if err := s.runtime.DestroyAgent(c.Request.Context(), agentID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) handleSendMessage(c *gin.Context) {
	agentID := c.Param("id")

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.runtime.SendMessage(c.Request.Context(), agentID, req.Text, time.Now(), req.FileIDs)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, MessageAcceptedResponse{Accepted: true})
}
