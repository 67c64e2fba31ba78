package api

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/browser"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/cleanup"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/config"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/events"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/llm"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/masking"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/runtime"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/sandbox"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/search"
	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer(t *testing.T, responses ...llm.Response) *Server {
	t.Helper()

	st := store.NewMemory()
	reg := events.NewRegistry(st)
	eventCfg := config.DefaultEventConfig()
	rt := runtime.New(
		st,
		reg,
		sandbox.NewMemoryFactory(),
		browser.NewMemoryFactory(),
		llm.NewStubClient(responses...),
		search.NewStubEngine(),
		masking.NewService(*config.DefaultMaskingConfig()),
		config.DefaultRuntimeConfig(),
		eventCfg,
	)
	cleaner := cleanup.New(st, rt, eventCfg, time.Minute)

	return NewServer(rt, st, reg, cleaner, eventCfg)
}

func TestHealthEndpointReportsHealthy(t *testing.T) {
	s := testServer(t)
	rec := doRequest(s, "GET", "/health", nil)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestStatsEndpointReportsZeroCountersBeforeAnySweep(t *testing.T) {
	s := testServer(t)
	rec := doRequest(s, "GET", "/api/v1/system/stats", nil)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"subscribers_reaped":0`)
}
