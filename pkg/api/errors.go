package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/tarsy-agent-runtime/pkg/domain"
)

// writeError maps a collaborator error to an HTTP response, logging
// anything that isn't an expected not-found case.
func writeError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}

	slog.Error("api request failed", "error", err, "path", c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
