// Package api exposes the Agent Runtime over HTTP: agent lifecycle,
// message submission, and a Server-Sent Events stream of an agent's
// buffered events built on the Subscription Stream.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/cleanup"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/config"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/events"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/runtime"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/store"
)

// Server wires the Agent Runtime, its store and event registry, and the
// background cleaner into a gin router.
type Server struct {
	runtime  *runtime.Runtime
	store    store.Store
	events   *events.Registry
	cleaner  *cleanup.Cleaner
	eventCfg *config.EventConfig

	router *gin.Engine
}

// NewServer builds a Server and registers its routes. cleaner may be
// nil, in which case GET /api/v1/system/stats reports zeroed counters.
func NewServer(rt *runtime.Runtime, st store.Store, reg *events.Registry, cleaner *cleanup.Cleaner, eventCfg *config.EventConfig) *Server {
	s := &Server{
		runtime:  rt,
		store:    st,
		events:   reg,
		cleaner:  cleaner,
		eventCfg: eventCfg,
	}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), gin.Logger(), securityHeaders())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/agents", s.handleCreateAgent)
		v1.GET("/agents/:id", s.handleGetAgent)
		v1.DELETE("/agents/:id", s.handleDestroyAgent)
		v1.POST("/agents/:id/messages", s.handleSendMessage)
		v1.GET("/agents/:id/events", s.handleStreamEvents)
		v1.GET("/agents/:id/ws", s.handleWebSocketEvents)
		v1.GET("/system/stats", s.handleStats)
	}
}

// Handler returns the underlying gin.Engine, useful for httptest wiring.
func (s *Server) Handler() http.Handler { return s.router }

// Run starts the HTTP server on addr, blocking until it returns an error
// or the process is terminated.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

func (s *Server) handleStats(c *gin.Context) {
	if s.cleaner == nil {
		c.JSON(http.StatusOK, StatsResponse{})
		return
	}
	stats := s.cleaner.Stats()
	c.JSON(http.StatusOK, StatsResponse{
		SubscribersReaped: stats.SubscribersReaped,
		OrphansRecovered:  stats.OrphansRecovered,
		LastSweep:         stats.LastSweep,
		LastOrphanScan:    stats.LastOrphanScan,
	})
}
